package occupancy

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/third-eye-sec/thirdeye/internal/conf"
	"github.com/third-eye-sec/thirdeye/internal/datastore"
)

// fakeScanner returns a fixed MAC list.
type fakeScanner struct {
	macs []string
	err  error
}

func (f *fakeScanner) Scan(ctx context.Context, subnet string) ([]string, error) {
	return f.macs, f.err
}

func openStore(t *testing.T) datastore.Interface {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "occ.db")
	ds := datastore.New(settings)
	require.NotNil(t, ds)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func occupancySettings() *conf.Settings {
	settings := &conf.Settings{}
	settings.Occupancy.SubnetMask = "192.168.1.0/24"
	settings.Occupancy.Owners = []conf.OwnerDevice{
		{MacAddr: "AA:BB:CC:DD:EE:01", Owner: "alice", Device: "phone"},
		{MacAddr: "AA:BB:CC:DD:EE:02", Owner: "bob", Device: "phone"},
	}
	return settings
}

func TestScanOnceFirstRunNobodyVisible(t *testing.T) {
	t.Parallel()

	ds := openStore(t)
	m := NewMonitor(ds, &fakeScanner{})

	require.NoError(t, m.ScanOnce(context.Background(), occupancySettings()))

	last, err := ds.LatestOccupancy()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, datastore.OccupancyAway, last.Status)
}

func TestScanOnceOwnersArrive(t *testing.T) {
	t.Parallel()

	ds := openStore(t)
	scanner := &fakeScanner{}
	m := NewMonitor(ds, scanner)
	settings := occupancySettings()

	require.NoError(t, m.ScanOnce(context.Background(), settings))

	// matching is case-insensitive
	scanner.macs = []string{"aa:bb:cc:dd:ee:01", "11:22:33:44:55:66"}
	require.NoError(t, m.ScanOnce(context.Background(), settings))

	last, err := ds.LatestOccupancy()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, datastore.OccupancyHome, last.Status)
	assert.Equal(t, []string{"alice"}, last.FoundOwners)
}

func TestScanOnceRepeatedStatusTouchesRow(t *testing.T) {
	t.Parallel()

	ds := openStore(t)
	scanner := &fakeScanner{macs: []string{"AA:BB:CC:DD:EE:01"}}
	m := NewMonitor(ds, scanner)
	settings := occupancySettings()

	first := time.Date(2026, 3, 10, 10, 0, 0, 0, time.Local)
	m.now = func() time.Time { return first }
	require.NoError(t, m.ScanOnce(context.Background(), settings))

	firstRow, err := ds.LatestOccupancy()
	require.NoError(t, err)
	require.NotNil(t, firstRow)

	second := first.Add(20 * time.Second)
	m.now = func() time.Time { return second }
	scanner.macs = []string{"AA:BB:CC:DD:EE:01", "AA:BB:CC:DD:EE:02"}
	require.NoError(t, m.ScanOnce(context.Background(), settings))

	last, err := ds.LatestOccupancy()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, firstRow.ID, last.ID, "same status updates the existing row")
	assert.Equal(t, []string{"alice", "bob"}, last.FoundOwners)
	require.NotNil(t, last.UpdateTS)
	assert.True(t, last.UpdateTS.After(first))
}

func TestScanOnceStatusFlipAppendsRow(t *testing.T) {
	t.Parallel()

	ds := openStore(t)
	scanner := &fakeScanner{macs: []string{"AA:BB:CC:DD:EE:01"}}
	m := NewMonitor(ds, scanner)
	settings := occupancySettings()

	require.NoError(t, m.ScanOnce(context.Background(), settings))
	home, err := ds.LatestOccupancy()
	require.NoError(t, err)

	scanner.macs = nil
	require.NoError(t, m.ScanOnce(context.Background(), settings))

	away, err := ds.LatestOccupancy()
	require.NoError(t, err)
	require.NotNil(t, away)
	assert.Equal(t, datastore.OccupancyAway, away.Status)
	assert.NotEqual(t, home.ID, away.ID, "status flip appends a new row")
}

func TestScanOnceScannerError(t *testing.T) {
	t.Parallel()

	ds := openStore(t)
	m := NewMonitor(ds, &fakeScanner{err: assert.AnError})
	assert.Error(t, m.ScanOnce(context.Background(), occupancySettings()))
}

func TestMatchOwnersPreservesRegistrationOrder(t *testing.T) {
	t.Parallel()

	owners := []conf.OwnerDevice{
		{MacAddr: "AA:AA:AA:AA:AA:01", Owner: "alice"},
		{MacAddr: "AA:AA:AA:AA:AA:02", Owner: "bob"},
	}
	found := matchOwners([]string{"aa:aa:aa:aa:aa:02", "aa:aa:aa:aa:aa:01"}, owners)
	assert.Equal(t, []string{"alice", "bob"}, found)
}

func TestNmapScannerNoSubnet(t *testing.T) {
	t.Parallel()

	s := NewNmapScanner()
	_, err := s.Scan(context.Background(), "")
	assert.Error(t, err)
}

func TestNmapScannerParsesMACs(t *testing.T) {
	t.Parallel()

	// the appended subnet lands in $0, which the script ignores
	script := "echo 'MAC Address: AA:BB:CC:DD:EE:FF (Vendor)'; echo 'MAC Address: 00:11:22:33:44:55'"
	s := &NmapScanner{Command: []string{"sh", "-c", script}}
	macs, err := s.Scan(context.Background(), "192.168.1.0/24")
	require.NoError(t, err)
	assert.Equal(t, []string{"AA:BB:CC:DD:EE:FF", "00:11:22:33:44:55"}, macs)
}
