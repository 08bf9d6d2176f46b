package dataset

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rewired-gh/indexcast/internal/models"
	"github.com/rewired-gh/indexcast/internal/window"
)

func day(n int) time.Time {
	return time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func makeSeries(name string, days []int, values []float64) models.Series {
	s := models.Series{Name: name}
	for i, d := range days {
		s.Observations = append(s.Observations, models.Observation{Timestamp: day(d), Value: values[i]})
	}
	return s
}

func linearSeries(n int) models.Series {
	days := make([]int, n)
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		days[i] = i
		values[i] = 100 + float64(i)
	}
	return makeSeries("index", days, values)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScaler(t *testing.T) {
	values := []float64{10, 20, 30, 40}

	minmax, err := FitScaler(ScaleMinMax, values)
	if err != nil {
		t.Fatalf("FitScaler failed: %v", err)
	}
	scaled := minmax.Transform(values)
	if !approx(scaled[0], 0) || !approx(scaled[3], 1) {
		t.Errorf("Expected minmax scaling onto [0,1], got %v", scaled)
	}

	mean, err := FitScaler(ScaleMean, values)
	if err != nil {
		t.Fatalf("FitScaler failed: %v", err)
	}
	scaled = mean.Transform(values)
	if !approx(scaled[0], -0.5) || !approx(scaled[3], 0.5) {
		t.Errorf("Expected mean scaling around 0, got %v", scaled)
	}

	for _, s := range []*Scaler{minmax, mean} {
		restored := s.InverseAll(s.Transform(values))
		for i := range values {
			if !approx(restored[i], values[i]) {
				t.Errorf("%s: inverse mismatch at %d: %f vs %f", s.Method, i, restored[i], values[i])
			}
		}
	}
}

func TestScalerConstantAndEmpty(t *testing.T) {
	s, err := FitScaler(ScaleMinMax, []float64{5, 5, 5})
	if err != nil {
		t.Fatalf("FitScaler failed: %v", err)
	}
	for _, v := range s.Transform([]float64{5, 5, 5}) {
		if v != 0 {
			t.Errorf("Expected zero for constant series, got %f", v)
		}
	}
	if s.Inverse(0.3) != 5 {
		t.Errorf("Expected constant inverse 5, got %f", s.Inverse(0.3))
	}

	if _, err := FitScaler(ScaleMinMax, nil); err != nil {
		t.Errorf("Empty series should fit: %v", err)
	}
	if _, err := FitScaler("zscore", []float64{1}); err == nil {
		t.Error("Expected error for unknown method")
	}
}

func TestSplit(t *testing.T) {
	values := make([]float64, 10)

	train, test, err := Split(values, 0.9)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(train) != 9 || len(test) != 1 {
		t.Errorf("Expected 9/1 split, got %d/%d", len(train), len(test))
	}

	train, test, _ = Split(make([]float64, 7), 0.5)
	if len(train) != 3 || len(test) != 4 {
		t.Errorf("Expected floor split 3/4, got %d/%d", len(train), len(test))
	}

	for _, f := range []float64{0, 1, -0.1, 1.5, math.NaN()} {
		if _, _, err := Split(values, f); !errors.Is(err, window.ErrInvalidConfig) {
			t.Errorf("Split(%v) error = %v, want ErrInvalidConfig", f, err)
		}
	}
}

func TestAlign(t *testing.T) {
	primary := makeSeries("index", []int{0, 1, 2, 3, 5}, []float64{1, 2, 3, 4, 5})
	secondary := makeSeries("fx", []int{1, 3, 4, 5}, []float64{60, 61, 62, 63})

	dropped, err := Align(primary, secondary, FillDrop)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if dropped.Primary.Len() != 3 {
		t.Fatalf("Expected 3 common dates, got %d", dropped.Primary.Len())
	}
	if got := dropped.Primary.Values(); got[0] != 2 || got[1] != 4 || got[2] != 5 {
		t.Errorf("Unexpected primary values after drop: %v", got)
	}
	if got := dropped.Secondary.Values(); got[0] != 60 || got[2] != 63 {
		t.Errorf("Unexpected secondary values after drop: %v", got)
	}

	padded, err := Align(primary, secondary, FillPad)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	// day 0 has no earlier fx value; day 2 carries day 1 forward
	if padded.Primary.Len() != 4 {
		t.Fatalf("Expected 4 dates with pad, got %d", padded.Primary.Len())
	}
	if got := padded.Secondary.Values(); got[1] != 60 {
		t.Errorf("Expected padded value 60 on day 2, got %v", got)
	}
	for i, o := range padded.Secondary.Observations {
		if !o.Timestamp.Equal(padded.Primary.Observations[i].Timestamp) {
			t.Errorf("Timestamps not aligned at %d", i)
		}
	}

	if _, err := Align(primary, secondary, "interpolate"); err == nil {
		t.Error("Expected error for unknown fill policy")
	}
}

func TestPrepare(t *testing.T) {
	opts := Options{
		Window:        window.Options{Length: 5, Horizon: 1, Stride: window.StrideOverlapping},
		TrainFraction: 0.8,
		Scale:         ScaleMinMax,
	}

	prepared, err := Prepare(linearSeries(100), nil, opts)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if prepared.TrainLen != 80 || prepared.TestLen != 20 {
		t.Errorf("Expected 80/20 observations, got %d/%d", prepared.TrainLen, prepared.TestLen)
	}
	if len(prepared.Train) != 75 || len(prepared.Test) != 15 {
		t.Errorf("Expected 75/15 examples, got %d/%d", len(prepared.Train), len(prepared.Test))
	}
	for _, e := range prepared.Train {
		if e.Target < 0 || e.Target > 1 {
			t.Fatalf("Expected scaled target in [0,1], got %f", e.Target)
		}
	}
	if got := prepared.Scaler.Inverse(prepared.Test[0].Target); !approx(got, 100+80+5) {
		t.Errorf("Expected descaled first test target 185, got %f", got)
	}
}

func TestPrepareWithCovariate(t *testing.T) {
	opts := Options{
		Window:        window.Options{Length: 4, Horizon: 1, Stride: window.StrideBlock, TrimToMultiple: true},
		TrainFraction: 0.5,
		Scale:         ScaleMean,
	}
	primary := linearSeries(40)
	covariate := linearSeries(40)
	covariate.Name = "fx"

	prepared, err := Prepare(primary, []models.Series{covariate}, opts)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if prepared.Train.Width() != 8 {
		t.Errorf("Expected input width 8, got %d", prepared.Train.Width())
	}

	short := linearSeries(10)
	if _, err := Prepare(primary, []models.Series{short}, opts); !errors.Is(err, window.ErrMalformedInput) {
		t.Errorf("Expected ErrMalformedInput for mismatched covariate, got %v", err)
	}
}

func TestPrepareInsufficientData(t *testing.T) {
	opts := Options{
		Window:        window.Options{Length: 30, Horizon: 1, Stride: window.StrideOverlapping},
		TrainFraction: 0.9,
		Scale:         ScaleMinMax,
	}

	prepared, err := Prepare(linearSeries(20), nil, opts)
	if err != nil {
		t.Fatalf("Short series should not be an error: %v", err)
	}
	if len(prepared.Train) != 0 || len(prepared.Test) != 0 {
		t.Errorf("Expected empty example sets, got %d/%d", len(prepared.Train), len(prepared.Test))
	}

	empty, err := Prepare(models.Series{Name: "index"}, nil, opts)
	if err != nil {
		t.Fatalf("Empty series should not be an error: %v", err)
	}
	if len(empty.Train) != 0 {
		t.Errorf("Expected no examples, got %d", len(empty.Train))
	}
}

func TestPrepareRejectsBadInput(t *testing.T) {
	opts := Options{
		Window:        window.Options{Length: 3, Horizon: 1, Stride: window.StrideOverlapping},
		TrainFraction: 0.9,
		Scale:         ScaleMinMax,
	}

	bad := linearSeries(10)
	bad.Observations[4].Value = math.NaN()
	if _, err := Prepare(bad, nil, opts); !errors.Is(err, window.ErrMalformedInput) {
		t.Errorf("Expected ErrMalformedInput, got %v", err)
	}

	opts.Window.Length = 0
	if _, err := Prepare(linearSeries(10), nil, opts); !errors.Is(err, window.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestAlignAll(t *testing.T) {
	primary := makeSeries("index", []int{0, 1, 2, 3, 5}, []float64{1, 2, 3, 4, 5})
	open := makeSeries("open", []int{1, 3, 4, 5}, []float64{11, 13, 14, 15})
	fx := makeSeries("fx", []int{0, 1, 2, 3}, []float64{60, 61, 62, 63})

	p, secs, err := AlignAll(primary, []models.Series{open, fx}, FillDrop)
	if err != nil {
		t.Fatalf("AlignAll failed: %v", err)
	}
	if got := p.Values(); len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Errorf("Expected primary values [2 4], got %v", got)
	}
	if got := secs[0].Values(); got[0] != 11 || got[1] != 13 {
		t.Errorf("Unexpected open values %v", got)
	}
	if got := secs[1].Values(); got[0] != 61 || got[1] != 63 {
		t.Errorf("Unexpected fx values %v", got)
	}

	p, secs, err = AlignAll(primary, []models.Series{open, fx}, FillPad)
	if err != nil {
		t.Fatalf("AlignAll failed: %v", err)
	}
	// day 0 has no open value to carry
	if p.Len() != 4 || secs[0].Len() != 4 || secs[1].Len() != 4 {
		t.Fatalf("Expected 4 padded dates everywhere, got %d/%d/%d", p.Len(), secs[0].Len(), secs[1].Len())
	}
	if got := secs[1].Values()[3]; got != 63 {
		t.Errorf("Expected fx carried forward to day 5, got %f", got)
	}

	alone, none, err := AlignAll(primary, nil, FillDrop)
	if err != nil || alone.Len() != primary.Len() || len(none) != 0 {
		t.Errorf("Expected primary unchanged without secondaries, got %d observations, err %v", alone.Len(), err)
	}
}

func TestPrepareWeekdays(t *testing.T) {
	opts := Options{
		Window:        window.Options{Length: 3, Horizon: 1, Stride: window.StrideOverlapping},
		TrainFraction: 0.5,
		Scale:         ScaleMinMax,
		Weekdays:      true,
	}

	// day(0) is Tuesday 2016-03-01
	prepared, err := Prepare(linearSeries(20), nil, opts)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if prepared.Train.Width() != 8 {
		t.Fatalf("Expected width 3+5, got %d", prepared.Train.Width())
	}

	tests := []struct {
		example int
		flags   []float64
	}{
		{0, []float64{0, 0, 0, 1, 0}}, // window ends Thursday
		{1, []float64{0, 0, 0, 0, 1}}, // Friday
		{2, []float64{0, 0, 0, 0, 0}}, // Saturday
		{4, []float64{1, 0, 0, 0, 0}}, // Monday
	}
	for _, tt := range tests {
		got := prepared.Train[tt.example].Window[3:]
		for i := range tt.flags {
			if got[i] != tt.flags[i] {
				t.Errorf("Example %d: expected flags %v, got %v", tt.example, tt.flags, got)
				break
			}
		}
	}
}

func TestPrepareExtraHorizons(t *testing.T) {
	opts := Options{
		Window:        window.Options{Length: 5, Horizon: 1, Stride: window.StrideOverlapping},
		TrainFraction: 0.8,
		Scale:         ScaleMinMax,
		ExtraHorizons: []int{7},
	}

	prepared, err := Prepare(linearSeries(100), nil, opts)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	weekly, ok := prepared.Extra[7]
	if !ok {
		t.Fatal("Expected a dataset for horizon 7")
	}

	if len(prepared.Train) != 69 || len(weekly.Train) != 69 {
		t.Errorf("Expected 69 shared training windows, got %d and %d", len(prepared.Train), len(weekly.Train))
	}
	if len(prepared.Test) != 9 || len(weekly.Test) != 9 {
		t.Errorf("Expected 9 shared testing windows, got %d and %d", len(prepared.Test), len(weekly.Test))
	}
	for i := range prepared.Train {
		a, b := prepared.Train[i], weekly.Train[i]
		if a.Offset != b.Offset {
			t.Fatalf("Example %d offsets differ: %d vs %d", i, a.Offset, b.Offset)
		}
		for j := range a.Window {
			if a.Window[j] != b.Window[j] {
				t.Fatalf("Example %d windows differ", i)
			}
		}
	}

	if got := prepared.Scaler.Inverse(prepared.Test[0].Target); !approx(got, 185) {
		t.Errorf("Expected daily target 185, got %f", got)
	}
	if got := prepared.Scaler.Inverse(weekly.Test[0].Target); !approx(got, 191) {
		t.Errorf("Expected weekly target 191, got %f", got)
	}

	opts.ExtraHorizons = []int{0}
	if _, err := Prepare(linearSeries(100), nil, opts); !errors.Is(err, window.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for horizon 0, got %v", err)
	}
}
