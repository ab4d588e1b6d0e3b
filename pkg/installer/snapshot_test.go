package installer_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/glorpus-work/modshare/pkg/installer"
	"github.com/glorpus-work/modshare/pkg/installer/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	capability := mocks.NewMockCapability(ctrl)
	capability.EXPECT().ListMods(gomock.Any()).Return([]string{"Alpha", "Beta", "Gamma"}, nil)
	capability.EXPECT().GetMetadata(gomock.Any(), "Alpha").Return(&installer.ModMetadata{
		Name: "Alpha Mod", Author: "A", Version: "1.0",
	}, nil)
	capability.EXPECT().GetMetadata(gomock.Any(), "Beta").Return(nil, fmt.Errorf("ipc timeout"))
	capability.EXPECT().GetMetadata(gomock.Any(), "Gamma").Return(nil, nil)

	snapshot, err := installer.Snapshot(context.Background(), capability)
	require.NoError(t, err)
	require.Len(t, snapshot, 3)

	assert.Equal(t, "Alpha Mod", snapshot[0].DisplayName)
	assert.False(t, snapshot[0].LookupFailed)

	assert.Equal(t, "Beta", snapshot[1].FolderName)
	assert.True(t, snapshot[1].LookupFailed, "lookup failure must mark, not drop, the entry")

	assert.True(t, snapshot[2].LookupFailed)
}

func TestSnapshot_ListFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	capability := mocks.NewMockCapability(ctrl)
	capability.EXPECT().ListMods(gomock.Any()).Return(nil, fmt.Errorf("mod manager offline"))

	_, err := installer.Snapshot(context.Background(), capability)
	assert.Error(t, err)
}
