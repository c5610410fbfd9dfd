package statline

var (
	_ Metric = (*Counter)(nil)
	_ Metric = (*CumulativeCounter)(nil)
	_ Metric = (*SnapshotCounter)(nil)
	_ Metric = (*SamplingGauge)(nil)
	_ Metric = (*EventGauge)(nil)
	_ Metric = (*AggregateGauge)(nil)
	_ Metric = (*SnapshotGauge)(nil)

	_ Handler = (*BosunHandler)(nil)
	_ Handler = (*DataDogHandler)(nil)
	_ Handler = (*SignalFxHandler)(nil)
	_ Handler = (*StatsdHandler)(nil)
	_ Handler = (*LocalHandler)(nil)

	_ ReadingEncoder = bosunEncoder{}
	_ ReadingEncoder = datadogEncoder{}
	_ ReadingEncoder = signalfxEncoder{}
	_ ReadingEncoder = statsdEncoder{}

	_ BatchWriter = (*Writer)(nil)
	_ BatchWriter = (*signalfxBatch)(nil)
	_ BatchWriter = localBatch{}
)
