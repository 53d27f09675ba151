package tokenaware

import (
	"slices"

	"github.com/arloliu/tokenaware/types"
)

// stepFunc produces the next node of one plan phase, or false when the phase
// is over.
type stepFunc func(p *QueryPlan) (types.Node, bool)

// orderingSteps is the per-ordering behavior of a plan.
type orderingSteps struct {
	// candidates orders the replica set for the scan. Nil for Neutral,
	// which scans the fallback plan instead.
	candidates func(replicas []types.Node, shuffle ShuffleFunc) []types.Node

	scan  stepFunc
	drain stepFunc
}

func stepsFor(ordering types.ReplicaOrdering) orderingSteps {
	switch ordering {
	case types.OrderingNatural:
		return orderingSteps{candidates: naturalCandidates, scan: scanReplicas, drain: drainFallback}
	case types.OrderingNeutral:
		return orderingSteps{candidates: noCandidates, scan: scanFallback, drain: drainBuffered}
	default:
		return orderingSteps{candidates: randomCandidates, scan: scanReplicas, drain: drainFallback}
	}
}

func naturalCandidates(replicas []types.Node, _ ShuffleFunc) []types.Node {
	return replicas
}

// randomCandidates returns a fresh permutation; the replica set itself is
// shared with the topology and must not be reordered.
func randomCandidates(replicas []types.Node, shuffle ShuffleFunc) []types.Node {
	candidates := slices.Clone(replicas)
	shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	return candidates
}

func noCandidates([]types.Node, ShuffleFunc) []types.Node {
	return nil
}

// scanReplicas yields the candidates that are up and local, in candidate order.
func scanReplicas(p *QueryPlan) (types.Node, bool) {
	for p.cursor < len(p.candidates) {
		node := p.candidates[p.cursor]
		p.cursor++

		if p.wasYielded(node) {
			continue
		}
		up, local := p.view.IsUp(node), p.isLocal(node)
		if !up || !local {
			p.config.Logger.Debug("skipping replica", "node", node.String(), "up", up, "local", local)
			continue
		}

		p.markYielded(node)
		p.config.Metrics.IncReplicaYield()

		return node, true
	}

	return types.Node{}, false
}

// drainFallback yields the fallback plan minus the nodes already yielded and
// minus local replicas. RetryDownLocalReplicas lets a local replica through
// when the scan did not yield it.
func drainFallback(p *QueryPlan) (types.Node, bool) {
	child := p.fallbackPlan()
	for {
		node, ok := child.Next()
		if !ok {
			return types.Node{}, false
		}
		if p.wasYielded(node) {
			continue
		}
		if p.config.DownReplicas == types.ExcludeLocalReplicas && p.isReplica(node) && p.isLocal(node) {
			continue
		}

		p.markYielded(node)
		p.config.Metrics.IncFallbackYield()

		return node, true
	}
}

// scanFallback yields the fallback plan's nodes that are up, replicas and
// local, in fallback order. Everything else is buffered in arrival order.
func scanFallback(p *QueryPlan) (types.Node, bool) {
	child := p.fallbackPlan()
	for {
		node, ok := child.Next()
		if !ok {
			return types.Node{}, false
		}
		if p.wasYielded(node) {
			continue
		}
		if !p.view.IsUp(node) || !p.isReplica(node) || !p.isLocal(node) {
			p.buffer(node)
			continue
		}

		p.markYielded(node)
		p.config.Metrics.IncReplicaYield()

		return node, true
	}
}

// drainBuffered yields the nodes buffered by scanFallback, or drops them
// under NeutralDropBuffered.
func drainBuffered(p *QueryPlan) (types.Node, bool) {
	if p.config.NeutralDrain == types.NeutralDropBuffered {
		if dropped := len(p.buffered) - p.bufferedPos; dropped > 0 {
			p.config.Metrics.AddBufferedDropped(dropped)
			p.config.Logger.Debug("dropping buffered candidates", "count", dropped, "keyspace", p.keyspace)
			p.bufferedPos = len(p.buffered)
		}

		return types.Node{}, false
	}

	for p.bufferedPos < len(p.buffered) {
		node := p.buffered[p.bufferedPos]
		p.bufferedPos++

		if p.wasYielded(node) {
			continue
		}

		p.markYielded(node)
		p.config.Metrics.IncFallbackYield()

		return node, true
	}

	return types.Node{}, false
}
