package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/idbstore/pkg/event"
	"github.com/cuemby/idbstore/pkg/idberrors"
)

func TestFactoryOpenCreatesNewDatabaseAtVersionOne(t *testing.T) {
	sched := event.NewScheduler()
	f, err := NewFactory(t.TempDir(), sched)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	req := f.Open("mydb", nil)
	sched.RunAll()
	require.NoError(t, req.Err)

	conn := req.Result.(*Connection)
	assert.Equal(t, uint64(1), conn.Version())
	assert.Empty(t, conn.ObjectStoreNames())
}

func TestFactoryOpenRunsUpgradeNeededAndPersistsSchema(t *testing.T) {
	sched := event.NewScheduler()
	f, err := NewFactory(t.TempDir(), sched)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	target := uint64(2)
	req := f.Open("mydb", &target)
	req.AddEventListener(event.TypeUpgradeNeeded, func(evt *event.Event) error {
		tr := req.Parent().(*Transaction)
		_, err := tr.CreateObjectStore("widgets", nil, false, true)
		return err
	})
	sched.RunAll()
	require.NoError(t, req.Err)

	conn := req.Result.(*Connection)
	assert.Equal(t, uint64(2), conn.Version())
	assert.Equal(t, []string{"widgets"}, conn.ObjectStoreNames())

	req2 := f.Open("mydb", nil)
	sched.RunAll()
	require.NoError(t, req2.Err)
	conn2 := req2.Result.(*Connection)
	assert.Equal(t, uint64(2), conn2.Version())
	assert.Equal(t, []string{"widgets"}, conn2.ObjectStoreNames())
}

func TestFactoryOpenRejectsStaleVersion(t *testing.T) {
	sched := event.NewScheduler()
	f, err := NewFactory(t.TempDir(), sched)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	target := uint64(3)
	req := f.Open("mydb", &target)
	sched.RunAll()
	require.NoError(t, req.Err)

	stale := uint64(1)
	req2 := f.Open("mydb", &stale)
	sched.RunAll()
	require.Error(t, req2.Err)
	assert.True(t, idberrors.Is(req2.Err, idberrors.VersionError))
}

func TestFactoryDeleteDatabaseNotifiesLiveConnections(t *testing.T) {
	sched := event.NewScheduler()
	f, err := NewFactory(t.TempDir(), sched)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	openReq := f.Open("mydb", nil)
	sched.RunAll()
	require.NoError(t, openReq.Err)
	conn := openReq.Result.(*Connection)

	var notified bool
	conn.AddEventListener(event.TypeVersionChange, func(evt *event.Event) error {
		notified = true
		detail := evt.Detail.(VersionChangeDetail)
		assert.Nil(t, detail.NewVersion)
		return nil
	})

	delReq := f.DeleteDatabase("mydb")
	sched.RunAll()
	require.NoError(t, delReq.Err)
	assert.True(t, notified)

	dbs, err := f.List()
	require.NoError(t, err)
	assert.Empty(t, dbs)
}
