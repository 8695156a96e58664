package traindata_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridml/netcase/pkg/application/services"
	"github.com/gridml/netcase/pkg/application/services/traindata"
	"github.com/gridml/netcase/pkg/domain/entities"
	"github.com/gridml/netcase/pkg/infrastructure/powerflow"
	testhelpers "github.com/gridml/netcase/pkg/infrastructure/testing"
)

func writeNetwork(t *testing.T, dir, name string, net *powerflow.Network) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, powerflow.WriteNetwork(f, net))
	return path
}

// outageFamily registers the four bus case and its single branch outages,
// writing the base network and the first two outages to files
func outageFamily(t *testing.T) (*services.CaseConfiguration, []string) {
	t.Helper()
	dir := t.TempDir()
	base := testhelpers.BuildFourBusNetwork()

	cfg := services.NewCaseConfiguration()
	_, _, err := cfg.SyncFromNetwork(base)
	require.NoError(t, err)
	cfg.CreateOptPattern("Base")

	outages, err := traindata.EnumerateBranchOutages(base, cfg, "Pattern")
	require.NoError(t, err)

	files := []string{
		writeNetwork(t, dir, "base.yaml", base),
		writeNetwork(t, dir, "outage1.yaml", outages[0].Network),
		writeNetwork(t, dir, "outage2.yaml", outages[1].Network),
	}
	return cfg, files
}

func TestEnumerateBranchOutages(t *testing.T) {
	base := testhelpers.BuildFourBusNetwork()
	cfg := services.NewCaseConfiguration()
	_, _, err := cfg.SyncFromNetwork(base)
	require.NoError(t, err)

	outages, err := traindata.EnumerateBranchOutages(base, cfg, "Pattern")
	require.NoError(t, err)

	// the four bus case is meshed: every single branch outage keeps all
	// buses energized
	require.Len(t, outages, 5)
	assert.Equal(t, 5, cfg.NumOptPatterns())
	for k, o := range outages {
		assert.Equal(t, testhelpers.FourBusBranchIDs()[k], o.BranchID)
		assert.Equal(t, []string{o.BranchID}, o.Pattern.MissingBranchIDs())
		assert.Empty(t, o.Pattern.MissingBusIDs())

		found, ok := cfg.FindOptPattern(o.Network)
		require.True(t, ok)
		assert.Same(t, o.Pattern, found)
	}
	assert.Equal(t, "Pattern-1", outages[0].Pattern.Name())
	assert.Equal(t, "fourbus-Pattern-1", outages[0].Network.ID)

	// the base network is left untouched
	assert.Equal(t, 5, base.NumActiveBranches())
}

func TestEnumerateBranchOutages_SkipsRadialBranches(t *testing.T) {
	net := testhelpers.BuildTwoBusNetwork(0.5, 0.2)
	cfg := services.NewCaseConfiguration()
	_, _, err := cfg.SyncFromNetwork(net)
	require.NoError(t, err)

	outages, err := traindata.EnumerateBranchOutages(net, cfg, "P")
	require.NoError(t, err)
	assert.Empty(t, outages)
	assert.Zero(t, cfg.NumOptPatterns())
}

func TestMultiNetBuilder_LoadNetworks(t *testing.T) {
	cfg, files := outageFamily(t)
	b := traindata.NewMultiNetBuilder(files, cfg, convergedStub(), traindata.WithSeed(3))

	for _, nc := range b.Cases() {
		assert.Equal(t, -1, nc.PatternIndex)
	}
	assert.Nil(t, b.CurrentNetCase())

	require.NoError(t, b.LoadNetworks(context.Background()))

	indexes := []int{}
	for _, nc := range b.Cases() {
		require.NotNil(t, nc.Network)
		indexes = append(indexes, nc.PatternIndex)
	}
	assert.Equal(t, []int{0, 1, 2}, indexes)
	assert.Equal(t, 6, b.NumNetOptPatterns())
	assert.Equal(t, 4, b.NumBuses())
	assert.Equal(t, 5, b.NumBranches())

	p, err := b.NetOptPattern(1)
	require.NoError(t, err)
	assert.Equal(t, "Pattern-1", p.Name())
	_, err = b.NetOptPattern(6)
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestMultiNetBuilder_CreateCases(t *testing.T) {
	cfg, files := outageFamily(t)
	b := traindata.NewMultiNetBuilder(files, cfg, convergedStub(), traindata.WithSeed(3))

	_, err := b.CreateTrainCase(context.Background(), 0, 6)
	assert.ErrorIs(t, err, traindata.ErrNotPrepared)

	require.NoError(t, b.LoadNetworks(context.Background()))

	patterns := []string{}
	for i := 0; i < 6; i++ {
		s, err := b.CreateTrainCase(context.Background(), i, 6)
		require.NoError(t, err)
		assert.Same(t, b.Cases()[i%3], b.CurrentNetCase())
		require.Len(t, s.BranchFlow, 5)
		assert.Equal(t, i, s.Case)
		patterns = append(patterns, s.Pattern)
	}
	assert.Equal(t, []string{"Base", "Pattern-1", "Pattern-2", "Base", "Pattern-1", "Pattern-2"}, patterns)

	s, err := b.CreateTestCase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, b.CurrentNetCase().Network.ID, s.Network)
	assert.GreaterOrEqual(t, s.Factor, 0.5)

	assert.Equal(t, 6, s.Case)

	s, err = b.CreateTestCaseWithFactor(context.Background(), 0.9)
	require.NoError(t, err)
	assert.Equal(t, 0.9, s.Factor)
	assert.Equal(t, 7, s.Case)
}

func TestMultiNetBuilder_ReloadPatternsKeepsBaseCase(t *testing.T) {
	cfg, files := outageFamily(t)
	dir := t.TempDir()
	saved := filepath.Join(dir, "patterns.txt")
	require.NoError(t, cfg.SaveOptPatterns(saved))
	content, err := os.ReadFile(saved)
	require.NoError(t, err)
	renamed := filepath.Join(dir, "renamed.txt")
	require.NoError(t, os.WriteFile(renamed, []byte(strings.Replace(string(content), "Base,", "Intact,", 1)), 0o644))

	b := traindata.NewMultiNetBuilder(files, cfg, convergedStub())
	require.NoError(t, b.LoadNetworks(context.Background()))

	ctx := context.Background()
	// nth 3 of 6 is factor 1.0 on the base network
	before, err := b.CreateTrainCase(ctx, 3, 6)
	require.NoError(t, err)
	assert.Equal(t, "Base", before.Pattern)
	assert.InDelta(t, 0.5, before.Input[2], 1e-12)

	// scale every network well above its base case
	for nth := 4; nth <= 6; nth++ {
		_, err := b.CreateTrainCase(ctx, nth, 4)
		require.NoError(t, err)
	}

	require.NoError(t, b.CreateNetOptPatternList(renamed))
	after, err := b.CreateTrainCase(ctx, 3, 6)
	require.NoError(t, err)
	assert.Same(t, b.Cases()[0], b.CurrentNetCase())
	assert.Equal(t, "Intact", after.Pattern)
	assert.Equal(t, 0, b.Cases()[0].PatternIndex)
	assert.Equal(t, before.Input, after.Input)
	assert.Equal(t, 0, before.Case)
	assert.Equal(t, 4, after.Case)
}

func TestMultiNetBuilder_Errors(t *testing.T) {
	b := traindata.NewMultiNetBuilder(nil, services.NewCaseConfiguration(), convergedStub())
	assert.ErrorIs(t, b.LoadNetworks(context.Background()), traindata.ErrNoNetworks)

	cfg, files := outageFamily(t)
	missing := append(files, filepath.Join(t.TempDir(), "missing.yaml"))
	b = traindata.NewMultiNetBuilder(missing, cfg, convergedStub())
	assert.ErrorIs(t, b.LoadNetworks(context.Background()), os.ErrNotExist)

	// a configuration without the outage patterns cannot describe them
	bare := services.NewCaseConfiguration()
	_, _, err := bare.SyncFromNetwork(testhelpers.BuildFourBusNetwork())
	require.NoError(t, err)
	bare.CreateOptPattern("Base")
	b = traindata.NewMultiNetBuilder(files, bare, convergedStub())
	assert.ErrorIs(t, b.LoadNetworks(context.Background()), traindata.ErrNoMatchingPattern)
}

func TestMultiNetBuilder_CreateNetOptPatternList(t *testing.T) {
	cfg, files := outageFamily(t)
	patternFile := filepath.Join(t.TempDir(), "patterns.txt")
	require.NoError(t, cfg.SaveOptPatterns(patternFile))

	fresh := services.NewCaseConfiguration()
	require.NoError(t, fresh.LoadBusMapping(saveMapping(t, cfg.SaveBusMapping)))
	require.NoError(t, fresh.LoadBranchMapping(saveMapping(t, cfg.SaveBranchMapping)))

	b := traindata.NewMultiNetBuilder(files, fresh, convergedStub())
	require.NoError(t, b.CreateNetOptPatternList(patternFile))
	assert.Equal(t, 6, b.NumNetOptPatterns())
	require.NoError(t, b.LoadNetworks(context.Background()))
	assert.Equal(t, 2, b.Cases()[2].PatternIndex)
}

func saveMapping(t *testing.T, save func(string) error) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapping.txt")
	require.NoError(t, save(path))
	return path
}

func TestGenerateAndSampleSet(t *testing.T) {
	b := traindata.NewLoadChangeBuilder(testhelpers.BuildFourBusNetwork(), convergedStub(), traindata.WithSeed(1))
	require.NoError(t, b.Prepare())

	result, err := traindata.Generate(context.Background(), b, 4, 2, nil)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, result.RunID)
	assert.Len(t, result.Train, 4)
	assert.Len(t, result.Test, 2)
	assert.Equal(t, 4, result.BusCount)
	assert.Equal(t, 5, result.BranchCount)

	set, err := traindata.NewSampleSet(result.RunID, result.BusCount, result.BranchCount, result.Train)
	require.NoError(t, err)
	assert.Equal(t, 4, set.Len())

	features := set.Features()
	r, c := features.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 8, c)
	// Bus3 load P grows with the factor
	assert.InDelta(t, 0.25, features.At(0, 2), 1e-12)
	assert.InDelta(t, 0.625, features.At(3, 2), 1e-12)

	r, c = set.Targets().Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 8, c)
	r, c = set.BranchFlows().Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 5, c)

	empty, err := traindata.NewSampleSet(result.RunID, 4, 5, nil)
	require.NoError(t, err)
	assert.Nil(t, empty.Features())

	_, err = traindata.NewSampleSet(result.RunID, 3, 5, result.Train)
	assert.Error(t, err)

	summary := traindata.Summarize(result, 0)
	assert.Equal(t, 4, summary.TrainCases)
	assert.Equal(t, 2, summary.TestCases)
	assert.Zero(t, summary.NotConverged)
	assert.Equal(t, 6, summary.Patterns[""])
}
