package synth

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/nvandessel/battsim/internal/models"
)

func generate(t *testing.T, d models.Domain, n int, seed int64, opts ...Option) *models.Dataset {
	t.Helper()
	ds, err := GenerateDomain(context.Background(), d, n, seed, opts...)
	if err != nil {
		t.Fatalf("GenerateDomain(%s) error = %v", d, err)
	}
	return ds
}

func TestGenerate_RowsRespectSchema(t *testing.T) {
	for _, d := range models.AllDomains() {
		t.Run(string(d), func(t *testing.T) {
			ds := generate(t, d, 5000, 42)
			if ds.Len() != 5000 {
				t.Fatalf("Len() = %d, want 5000", ds.Len())
			}
			for r, s := range ds.Samples {
				if len(s.Features) != len(ds.Schema.Columns) {
					t.Fatalf("row %d has %d features, want %d", r, len(s.Features), len(ds.Schema.Columns))
				}
				if !ds.Schema.ValidLabel(s.Label) {
					t.Fatalf("row %d label %d outside label set", r, s.Label)
				}
				for i, c := range ds.Schema.Columns {
					v := s.Features[i]
					if math.IsNaN(v) || math.IsInf(v, 0) {
						t.Fatalf("row %d %s = %v, not finite", r, c.Name, v)
					}
					if c.NonNegative() && v < 0 {
						t.Fatalf("row %d %s = %v, want >= 0", r, c.Name, v)
					}
					if c.Bound == models.BoundClip && v < c.Floor {
						t.Fatalf("row %d %s = %v, below floor %v", r, c.Name, v, c.Floor)
					}
					if c.HasCeiling && v > c.Ceiling {
						t.Fatalf("row %d %s = %v, above ceiling %v", r, c.Name, v, c.Ceiling)
					}
					if c.Integer && v != math.Trunc(v) {
						t.Fatalf("row %d %s = %v, want integer", r, c.Name, v)
					}
					if !c.Integer && v != models.Round(v, c.Precision) {
						t.Fatalf("row %d %s = %v, not rounded to %d decimals", r, c.Name, v, c.Precision)
					}
				}
			}
		})
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	for _, d := range models.AllDomains() {
		t.Run(string(d), func(t *testing.T) {
			a := generate(t, d, 2000, 42)
			b := generate(t, d, 2000, 42)
			if !reflect.DeepEqual(a, b) {
				t.Error("same seed produced different datasets")
			}

			c := generate(t, d, 2000, 43)
			if reflect.DeepEqual(a.Samples, c.Samples) {
				t.Error("different seeds produced identical datasets")
			}
		})
	}
}

func TestGenerate_ParallelMatchesSerial(t *testing.T) {
	for _, d := range models.AllDomains() {
		t.Run(string(d), func(t *testing.T) {
			serial := generate(t, d, 3000, 7)
			parallel := generate(t, d, 3000, 7, WithWorkers(8))
			if !reflect.DeepEqual(serial, parallel) {
				t.Error("parallel generation differs from serial")
			}
		})
	}
}

func TestGenerate_PrefixStable(t *testing.T) {
	short := generate(t, models.DomainDriver, 100, 42)
	long := generate(t, models.DomainDriver, 1000, 42)
	if !reflect.DeepEqual(short.Samples, long.Samples[:100]) {
		t.Error("first rows depend on the total row count")
	}
}

func TestSynthesizeRow_MatchesGenerate(t *testing.T) {
	d, err := New(models.DomainSafety)
	if err != nil {
		t.Fatal(err)
	}
	ds, err := Generate(context.Background(), d, 50, 99)
	if err != nil {
		t.Fatal(err)
	}
	s, err := SynthesizeRow(d, 99, 37)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(s, ds.Samples[37]) {
		t.Error("SynthesizeRow(37) differs from generated row 37")
	}
}

func TestGenerate_DriverPrior(t *testing.T) {
	ds := generate(t, models.DomainDriver, 10000, 42)
	prior := DriverProfile().Prior

	source := make([]int, len(prior))
	for _, s := range ds.Samples {
		source[s.Trace.SourceLabel]++
	}
	stored := ds.LabelCounts()

	for i, p := range prior {
		if got := float64(source[i]) / 10000; math.Abs(got-p) > 0.03 {
			t.Errorf("source label %d frequency = %.3f, want %.2f ± 0.03", i, got, p)
		}
		if got := float64(stored[i]) / 10000; math.Abs(got-p) > 0.03 {
			t.Errorf("stored label %d frequency = %.3f, want %.2f ± 0.03", i, got, p)
		}
	}
}

func TestGenerate_FaultAndRelabelRates(t *testing.T) {
	const n = 10000
	ds := generate(t, models.DomainSafety, n, 42)
	p := SafetyProfile()

	var faulted, relabeled, changed int
	for _, s := range ds.Samples {
		if s.Trace.Faulted {
			faulted++
		}
		if s.Trace.Relabeled {
			relabeled++
		}
		if s.Label != s.Trace.SourceLabel {
			changed++
		}
	}

	if got := float64(faulted) / n; math.Abs(got-p.Fault.Probability) > 0.02 {
		t.Errorf("fault rate = %.4f, want %.2f ± 0.02", got, p.Fault.Probability)
	}
	if got := float64(relabeled) / n; math.Abs(got-p.MislabelProb) > 0.02 {
		t.Errorf("relabel trial rate = %.4f, want %.2f ± 0.02", got, p.MislabelProb)
	}

	// The replacement label is uniform over all k labels, so only (k-1)/k
	// of triggered trials change the label.
	k := float64(len(p.Classes))
	wantChanged := p.MislabelProb * (k - 1) / k
	if got := float64(changed) / n; math.Abs(got-wantChanged) > 0.02 {
		t.Errorf("label change rate = %.4f, want %.4f ± 0.02", got, wantChanged)
	}
	if changed > relabeled {
		t.Errorf("%d labels changed but only %d relabel trials fired", changed, relabeled)
	}
}

func TestGenerate_FaultRateFromOverride(t *testing.T) {
	prob := 0.3
	d, err := NewWithOverrides(models.DomainDriver, Overrides{FaultProb: &prob})
	if err != nil {
		t.Fatal(err)
	}
	ds, err := Generate(context.Background(), d, 10000, 5)
	if err != nil {
		t.Fatal(err)
	}
	var faulted int
	for _, s := range ds.Samples {
		if s.Trace.Faulted {
			faulted++
		}
	}
	if got := float64(faulted) / 10000; math.Abs(got-prob) > 0.02 {
		t.Errorf("fault rate = %.4f, want %.2f ± 0.02", got, prob)
	}
}

func TestGenerate_HealthEndToEnd(t *testing.T) {
	ds := generate(t, models.DomainHealth, 10000, 42)

	if got := len(ds.Schema.Header()); got != 9 {
		t.Errorf("header has %d columns, want 9", got)
	}
	if ds.Len() != 10000 {
		t.Fatalf("Len() = %d, want 10000", ds.Len())
	}

	counts := ds.LabelCounts()
	if len(counts) != 2 || counts[0]+counts[1] != 10000 {
		t.Fatalf("label counts = %v, want all rows in {0, 1}", counts)
	}
	if got := float64(counts[HealthGood]) / 10000; math.Abs(got-0.5) > 0.03 {
		t.Errorf("Good frequency = %.3f, want 0.5 ± 0.03", got)
	}

	for r, v := range ds.Column(models.ColCycleCount) {
		if v != math.Trunc(v) || v < 0 {
			t.Fatalf("row %d Cycle_Count = %v, want non-negative integer", r, v)
		}
	}
	for r, v := range ds.Column(models.ColInternalRes) {
		if v < 50 {
			t.Fatalf("row %d Internal_Res = %v, want >= 50", r, v)
		}
	}
	for r, v := range ds.Column(models.ColCoulombicEff) {
		if v > 100 {
			t.Fatalf("row %d Coulombic_Eff = %v, want <= 100", r, v)
		}
	}

	// Bad batteries have lower SOH, so higher resistance.
	good, bad := classMeans(ds, models.ColInternalRes, HealthGood, HealthBad)
	if bad <= good {
		t.Errorf("mean Internal_Res Bad = %.2f, Good = %.2f, want Bad > Good", bad, good)
	}
}

func TestGenerate_SafetyCriticalHotterThanNormal(t *testing.T) {
	ds := generate(t, models.DomainSafety, 10000, 42)

	var sum [3]float64
	var count [3]int
	i := ds.Schema.ColumnIndex(models.ColPackTemp)
	for _, s := range ds.Samples {
		if s.Trace.Faulted || s.Trace.Relabeled {
			continue
		}
		sum[s.Label] += s.Features[i]
		count[s.Label]++
	}
	normal := sum[SafetyNormal] / float64(count[SafetyNormal])
	warning := sum[SafetyWarning] / float64(count[SafetyWarning])
	critical := sum[SafetyCritical] / float64(count[SafetyCritical])

	if !(critical > warning && warning > normal) {
		t.Errorf("mean Pack_Temp normal=%.2f warning=%.2f critical=%.2f, want increasing", normal, warning, critical)
	}
	if math.Abs(normal-35) > 1.5 {
		t.Errorf("mean clean Normal Pack_Temp = %.2f, want ~35", normal)
	}
}

func TestGenerate_SafetyFaultReachesDerivedReadings(t *testing.T) {
	ds := generate(t, models.DomainSafety, 10000, 42)
	pack := ds.Schema.ColumnIndex(models.ColPackTemp)
	inverter := ds.Schema.ColumnIndex(models.ColInverterTemp)

	var sum [2]float64
	var count, wide [2]int
	for _, s := range ds.Samples {
		// Skip rows where clipping at zero hides the offset.
		if s.Features[pack] <= 0 || s.Features[inverter] <= 0 {
			continue
		}
		k := 0
		if s.Trace.Faulted {
			k = 1
		}
		gap := s.Features[inverter] - s.Features[pack]
		sum[k] += gap
		count[k]++
		if math.Abs(gap) > 20 {
			wide[k]++
		}
	}
	if count[1] < 500 {
		t.Fatalf("only %d faulted rows, want about 1000", count[1])
	}

	// Inverter_Temp is Pack_Temp + N(5, 5) whether or not the sensor faulted.
	for k, name := range []string{"clean", "faulted"} {
		mean := sum[k] / float64(count[k])
		if math.Abs(mean-5) > 1 {
			t.Errorf("%s mean Inverter_Temp - Pack_Temp = %.2f, want 5 ± 1", name, mean)
		}
		if share := float64(wide[k]) / float64(count[k]); share > 0.01 {
			t.Errorf("%s rows with |Inverter_Temp - Pack_Temp| > 20: %.3f, want < 0.01", name, share)
		}
	}
}

func TestGenerate_DriverScenariosFire(t *testing.T) {
	ds := generate(t, models.DomainDriver, 10000, 42)
	seen := map[string]int{}
	for _, s := range ds.Samples {
		if s.Trace.Scenario != "" {
			seen[s.Trace.Scenario]++
			if s.Trace.SourceLabel == DriverEmergency {
				t.Fatal("Emergency rows have no scenarios")
			}
		}
	}
	for _, name := range []string{ScenarioEmptyNightRoad, ScenarioAggressiveCity, ScenarioTrafficJam} {
		if seen[name] == 0 {
			t.Errorf("scenario %s never fired", name)
		}
	}
}

func TestGenerate_InvalidSampleCount(t *testing.T) {
	for _, n := range []int{0, -5} {
		_, err := GenerateDomain(context.Background(), models.DomainSafety, n, 42)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("n=%d: error = %v, want ErrInvalidConfig", n, err)
		}
		if StageOf(err) != StageConfig {
			t.Errorf("n=%d: stage = %q, want %q", n, StageOf(err), StageConfig)
		}
	}
}

func TestGenerate_UnknownDomain(t *testing.T) {
	_, err := GenerateDomain(context.Background(), models.Domain("thermal"), 10, 42)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestGenerate_InvalidOverrideRejected(t *testing.T) {
	_, err := NewWithOverrides(models.DomainSafety, Overrides{
		Classes: map[string]map[string]Dist{"Critical": {FeatPackTemp: Normal(75, -25)}},
	})
	var se *Error
	if !errors.As(err, &se) || se.Stage != StageConfig || se.Domain != models.DomainSafety {
		t.Fatalf("error = %v, want safety config error", err)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestGenerate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		_, err := GenerateDomain(ctx, models.DomainDriver, 1000, 42, WithWorkers(workers))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("workers=%d: error = %v, want context.Canceled", workers, err)
		}
	}
}

func TestGenerate_HealthPosteriorExhausted(t *testing.T) {
	// Every SOH lies far above the boundary, so Bad can never be accepted.
	p := HealthProfile()
	for i := range p.Classes {
		p.Classes[i].Features[FeatSOH] = Uniform(99, 100)
	}
	p.Boundary = &Boundary{Center: 60, Softness: 0.01}
	p.Prior = []float64{0, 1}

	d, err := NewFromProfile(p)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Generate(context.Background(), d, 3, 1)
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if se.Stage != StageSampling || se.Row != 0 {
		t.Errorf("error stage=%q row=%d, want sampling at row 0", se.Stage, se.Row)
	}
}

func TestGenerate_RowHook(t *testing.T) {
	var calls atomic.Int64
	hook := func(row int, s models.Sample) { calls.Add(1) }

	generate(t, models.DomainHealth, 500, 42, WithWorkers(4), WithRowHook(hook))
	if got := calls.Load(); got != 500 {
		t.Errorf("hook called %d times, want 500", got)
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Domain: models.DomainHealth, Stage: StageSampling, Row: 12, Err: errors.New("boom")}
	if got, want := err.Error(), "health: sampling failed at row 12: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	noRow := NewError(models.DomainDriver, StageIO, errors.New("disk full"))
	if got, want := noRow.Error(), "driver: io failed: disk full"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if StageOf(errors.New("plain")) != "" {
		t.Error("StageOf(plain error) should be empty")
	}
}

func classMeans(ds *models.Dataset, column string, a, b int) (float64, float64) {
	i := ds.Schema.ColumnIndex(column)
	var sumA, sumB float64
	var nA, nB int
	for _, s := range ds.Samples {
		switch s.Label {
		case a:
			sumA += s.Features[i]
			nA++
		case b:
			sumB += s.Features[i]
			nB++
		}
	}
	return sumA / float64(nA), sumB / float64(nB)
}
