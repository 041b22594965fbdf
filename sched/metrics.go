package sched

// Metrics tracks scheduler activity: context-switch counts, per-level
// queue depth, and a running estimate of the quantum-consumption
// distribution (how many ticks threads actually use before being
// descheduled, whether by blocking, yielding, or quantum expiry).
//
// The percentile estimator is the streaming P² algorithm (Jain & Chlamtac,
// 1985), adapted from the teacher's own streaming-percentile tracker for
// event-loop tick latency (eventloop/psquare.go,
// _examples/joeycumines-go-utilpkg/eventloop/metrics.go): there it tracks
// how long a loop tick takes; here it tracks how many ticks a thread
// consumes per scheduling slice, constant space regardless of sample
// count.
type Metrics struct {
	switches       uint64
	quantumExpiries uint64
	p2             *p2Estimator
}

// MetricsSnapshot is a point-in-time read of scheduler Metrics.
type MetricsSnapshot struct {
	ContextSwitches  uint64
	QuantumExpiries  uint64
	RunQueueDepths   [Levels]int
	GraveyardDepth   int
	MedianTicksUsed  float64
}

func newMetrics() *Metrics {
	return &Metrics{p2: newP2Estimator(0.5)}
}

func (m *Metrics) observeSwitch(prev, next *Thread) {
	m.switches++
	if prev != nil {
		m.p2.observe(float64(prev.ticks))
	}
}

func (m *Metrics) observeQuantumExpiry() {
	m.quantumExpiries++
}

// snapshot must be called with s.mu held.
func (m *Metrics) snapshot(s *Scheduler) MetricsSnapshot {
	snap := MetricsSnapshot{
		ContextSwitches: m.switches,
		QuantumExpiries: m.quantumExpiries,
		GraveyardDepth:  s.graveyard.Len(),
		MedianTicksUsed: m.p2.quantile(),
	}
	for i := 0; i < Levels; i++ {
		snap.RunQueueDepths[i] = s.runQueues[i].Len()
	}
	return snap
}

// p2Estimator implements the P² algorithm for a single quantile, tracking
// five markers whose heights approximate the quantile's neighborhood
// without retaining any samples.
type p2Estimator struct {
	p          float64
	n          [5]int
	q          [5]float64
	np         [5]float64
	dn         [5]float64
	count      int
	initialBuf []float64
}

func newP2Estimator(p float64) *p2Estimator {
	return &p2Estimator{p: p}
}

func (e *p2Estimator) observe(x float64) {
	e.count++

	if e.count <= 5 {
		e.initialBuf = append(e.initialBuf, x)
		if e.count == 5 {
			e.initializeFromBuffer()
		}
		return
	}

	k := 0
	switch {
	case x < e.q[0]:
		e.q[0] = x
		k = 0
	case x >= e.q[4]:
		e.q[4] = x
		k = 3
	default:
		for i := 0; i < 4; i++ {
			if x < e.q[i+1] {
				k = i
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		e.n[i]++
	}
	for i := 0; i < 5; i++ {
		e.np[i] += e.dn[i]
	}

	for i := 1; i < 4; i++ {
		d := e.np[i] - float64(e.n[i])
		if (d >= 1 && e.n[i+1]-e.n[i] > 1) || (d <= -1 && e.n[i-1]-e.n[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}
			qNew := e.parabolic(i, sign)
			if e.q[i-1] < qNew && qNew < e.q[i+1] {
				e.q[i] = qNew
			} else {
				e.q[i] = e.linear(i, sign)
			}
			e.n[i] += sign
		}
	}
}

func (e *p2Estimator) initializeFromBuffer() {
	buf := append([]float64(nil), e.initialBuf...)
	for i := 0; i < len(buf); i++ {
		for j := i + 1; j < len(buf); j++ {
			if buf[j] < buf[i] {
				buf[i], buf[j] = buf[j], buf[i]
			}
		}
	}
	for i := 0; i < 5; i++ {
		e.q[i] = buf[i]
		e.n[i] = i + 1
	}
	e.np[0] = 1
	e.np[1] = 1 + 2*e.p
	e.np[2] = 1 + 4*e.p
	e.np[3] = 3 + 2*e.p
	e.np[4] = 5
	e.dn[0] = 0
	e.dn[1] = e.p / 2
	e.dn[2] = e.p
	e.dn[3] = (1 + e.p) / 2
	e.dn[4] = 1
}

func (e *p2Estimator) parabolic(i, sign int) float64 {
	d := float64(sign)
	return e.q[i] + d/float64(e.n[i+1]-e.n[i-1])*(
		(float64(e.n[i]-e.n[i-1])+d)*(e.q[i+1]-e.q[i])/float64(e.n[i+1]-e.n[i])+
			(float64(e.n[i+1]-e.n[i])-d)*(e.q[i]-e.q[i-1])/float64(e.n[i]-e.n[i-1]))
}

func (e *p2Estimator) linear(i, sign int) float64 {
	d := sign
	return e.q[i] + float64(d)*(e.q[i+d]-e.q[i])/float64(e.n[i+d]-e.n[i])
}

func (e *p2Estimator) quantile() float64 {
	if e.count == 0 {
		return 0
	}
	if e.count < 5 {
		sum := 0.0
		for _, v := range e.initialBuf {
			sum += v
		}
		return sum / float64(len(e.initialBuf))
	}
	return e.q[2]
}
