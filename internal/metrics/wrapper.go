package metrics

// Wrapper adapts Metrics to the narrow interface the predictors record to.
type Wrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *Wrapper {
	return &Wrapper{m: m}
}

func (w *Wrapper) PredictionsAdd(n int) {
	w.m.Predictions.Add(float64(n))
}

func (w *Wrapper) InputRowsAdd(n int) {
	w.m.InputRows.Add(float64(n))
}

func (w *Wrapper) InputSourcesInc() {
	w.m.InputSources.Inc()
}

func (w *Wrapper) ScoresAdd(method string, n int) {
	w.m.Scores.WithLabelValues(method).Add(float64(n))
}

func (w *Wrapper) PredictLatencyObserve(seconds float64) {
	w.m.PredictLatency.Observe(seconds)
}

func (w *Wrapper) ModelLoadSet(seconds float64) {
	w.m.ModelLoad.Set(seconds)
}

func (w *Wrapper) ErrorsInc() {
	w.m.Errors.Inc()
}
