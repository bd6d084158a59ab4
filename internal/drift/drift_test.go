package drift

import "testing"

// 1. A stable all-correct stream must never fire.
func TestAdaptiveWindowStableStream(t *testing.T) {
	w := NewAdaptiveWindow(DefaultConfig())

	for i := 0; i < 500; i++ {
		w.Update(false)
		if w.Drift() {
			t.Fatalf("drift fired on a stable stream at i=%d", i)
		}
	}
	if w.Width() != 500 {
		t.Errorf("width = %d, want 500", w.Width())
	}
}

// 2. A long correct run followed by a long error run fires exactly once on
//    its own: the firing drains the pre-shift bits, so the continuing error
//    stream looks uniform and stays quiet without any outside reset.
func TestAdaptiveWindowShiftFiresOnce(t *testing.T) {
	w := NewAdaptiveWindow(DefaultConfig())

	for i := 0; i < 300; i++ {
		w.Update(false)
	}

	fires := 0
	for i := 0; i < 300; i++ {
		w.Update(true)
		if w.Drift() {
			fires++
			if w.Width() >= 300 {
				t.Errorf("firing kept %d bits, pre-shift run not drained", w.Width())
			}
		}
	}
	if fires != 1 {
		t.Errorf("fires = %d, want exactly 1", fires)
	}
}

// 3. Reset must empty the window and clear the flag.
func TestAdaptiveWindowReset(t *testing.T) {
	w := NewAdaptiveWindow(DefaultConfig())
	for i := 0; i < 50; i++ {
		w.Update(i%2 == 0)
	}

	w.Reset()

	if w.Width() != 0 {
		t.Errorf("width after reset = %d, want 0", w.Width())
	}
	if w.Drift() {
		t.Errorf("drift after reset = true, want false")
	}
}

// 4. Windows narrower than MinWidth are never tested, even on a hard flip.
func TestAdaptiveWindowNoTestUnderMinWidth(t *testing.T) {
	w := NewAdaptiveWindow(DefaultConfig())

	for i := 0; i < 4; i++ {
		w.Update(false)
	}
	for i := 0; i < 5; i++ {
		w.Update(true)
		if w.Drift() {
			t.Fatalf("drift fired at width %d, below the minimum", w.Width())
		}
	}
}

// 5. The window stays bounded at MaxWidth on an endless uniform stream.
func TestAdaptiveWindowBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxWidth = 64
	w := NewAdaptiveWindow(cfg)

	for i := 0; i < 500; i++ {
		w.Update(true)
		if w.Drift() {
			t.Fatalf("drift fired on a uniform stream at i=%d", i)
		}
	}
	if w.Width() != 64 {
		t.Errorf("width = %d, want bounded at 64", w.Width())
	}
}

// 6. The run chart fires on a rate jump and stays quiet while the rate holds.
func TestChartShiftFires(t *testing.T) {
	c := NewChart(DefaultChartConfig())

	for i := 0; i < 200; i++ {
		c.Update(i%20 == 0) // ~5% background error rate
		if c.Drift() {
			t.Fatalf("drift fired during the stable phase at i=%d", i)
		}
	}

	fires := 0
	for i := 0; i < 200; i++ {
		c.Update(true)
		if c.Drift() {
			fires++
		}
	}
	if fires == 0 {
		t.Errorf("chart never fired on an error-rate jump")
	}
}

// 7. Chart reset restores the empty state.
func TestChartReset(t *testing.T) {
	c := NewChart(DefaultChartConfig())
	for i := 0; i < 100; i++ {
		c.Update(i%3 == 0)
	}

	c.Reset()

	if c.Width() != 0 {
		t.Errorf("width after reset = %d, want 0", c.Width())
	}
	if c.Drift() {
		t.Errorf("drift after reset = true, want false")
	}
}

// 8. The factory maps strategy names to implementations and rejects unknowns.
func TestFactoryStrategies(t *testing.T) {
	d, err := New(StrategyAdwin, DefaultConfig())
	if err != nil {
		t.Fatalf("New(adwin) error: %v", err)
	}
	if _, ok := d.(*AdaptiveWindow); !ok {
		t.Errorf("New(adwin) = %T, want *AdaptiveWindow", d)
	}

	d, err = New(StrategyChart, DefaultConfig())
	if err != nil {
		t.Fatalf("New(chart) error: %v", err)
	}
	if _, ok := d.(*Chart); !ok {
		t.Errorf("New(chart) = %T, want *Chart", d)
	}

	if _, err := New("bogus", DefaultConfig()); err == nil {
		t.Errorf("New(bogus) succeeded, want error")
	}
}
