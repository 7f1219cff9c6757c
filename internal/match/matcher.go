package match

import (
	"sort"

	"github.com/dennisdiepolder/xferlink/internal/holds"
	"github.com/dennisdiepolder/xferlink/internal/legs"
	"github.com/dennisdiepolder/xferlink/internal/phone"
	"github.com/dennisdiepolder/xferlink/internal/queues"
	"github.com/dennisdiepolder/xferlink/internal/types"
	"github.com/rs/zerolog"
)

// Timing constraints for pairing a first leg with an inbound delivery. The
// agent may answer up to 60s before the recorded transfer instant (clock
// skew, queue entry ordering) and up to 600s after. Inbound-to-inbound
// matching allows no negative tolerance.
const (
	maxEarlySeconds = 60
	maxLateSeconds  = 600
	holdLeadIn      = 30
)

// UsedSet tracks which inbound call ids have already been consumed as a
// second leg. One set is threaded through every pass of a correlation run;
// it must never outlive the run.
type UsedSet map[string]struct{}

// NewUsedSet creates an empty used-id set for one correlation run.
func NewUsedSet() UsedSet { return make(UsedSet) }

// Mark records an id as consumed.
func (u UsedSet) Mark(id string) { u[id] = struct{}{} }

// Used reports whether an id has been consumed.
func (u UsedSet) Used(id string) bool {
	_, ok := u[id]
	return ok
}

// Matcher runs the cross-call matching passes.
type Matcher struct {
	resolver *queues.Resolver
	logger   zerolog.Logger
}

// NewMatcher creates a Matcher over the given queue-extension mapping.
func NewMatcher(resolver *queues.Resolver, logger zerolog.Logger) *Matcher {
	return &Matcher{
		resolver: resolver,
		logger:   logger.With().Str("component", "matcher").Logger(),
	}
}

// firstLeg is a classified transfer-initiating call with the reference time
// its candidates are measured against.
type firstLeg struct {
	call *types.CallRecord
	info legs.Info
	ref  int64
}

// MatchInternal finds same-call transfers: first legs whose own history
// already contains the queue delivery. These are linked first so later
// passes cannot claim them.
func (m *Matcher) MatchInternal(inbound []*types.CallRecord, used UsedSet) []types.TransferLink {
	var links []types.TransferLink

	for _, call := range inbound {
		if used.Used(call.ID) {
			continue
		}
		info := legs.Classify(call)
		if !info.FirstLeg || info.AgentEnterTime == 0 || info.AgentEnterTime < info.TransferTime {
			continue
		}

		status, reason := ClassifySecondLeg(call)
		links = append(links, types.TransferLink{
			FirstLeg:        call,
			SecondLeg:       call,
			QueueExtension:  info.QueueExtension,
			TransferTime:    info.TransferTime,
			TransferredTime: info.AgentEnterTime,
			Status:          status,
			StatusReason:    reason,
		})
		used.Mark(call.ID)

		m.logger.Debug().Str("call_id", call.ID).Str("queue", info.QueueExtension).
			Msg("internal transfer linked")
	}

	return links
}

// MatchCampaign correlates campaign first legs against the inbound pool.
func (m *Matcher) MatchCampaign(campaign, inbound []*types.CallRecord, used UsedSet) []types.TransferLink {
	return m.matchPool(campaign, inbound, used, false)
}

// MatchOutbound correlates direct outbound first legs against the inbound pool.
func (m *Matcher) MatchOutbound(outbound, inbound []*types.CallRecord, used UsedSet) []types.TransferLink {
	return m.matchPool(outbound, inbound, used, false)
}

// MatchInbound correlates inbound-to-inbound transfers. The algorithm is the
// same, with three differences: self-matches are excluded, the reference
// time is the hold start (or the call's own start), and the timing window
// is strictly positive. A first leg with no candidate still emits a link.
func (m *Matcher) MatchInbound(inbound []*types.CallRecord, used UsedSet) []types.TransferLink {
	return m.matchPool(inbound, inbound, used, true)
}

func (m *Matcher) matchPool(firsts, inbound []*types.CallRecord, used UsedSet, inboundToInbound bool) []types.TransferLink {
	candidates := classifyPool(inbound)

	var pending []firstLeg
	for _, call := range firsts {
		if inboundToInbound && used.Used(call.ID) {
			// Already consumed, e.g. linked as an internal transfer.
			continue
		}
		info := legs.Classify(call)
		if !info.FirstLeg {
			continue
		}
		ref := info.TransferTime
		if inboundToInbound {
			ref = info.HoldStartTime
			if ref == 0 {
				ref = call.CalledTime
			}
		}
		pending = append(pending, firstLeg{call: call, info: info, ref: ref})
	}

	// Earlier transfers claim earlier deliveries first.
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].ref < pending[j].ref })

	var links []types.TransferLink
	for _, first := range pending {
		link, ok := m.matchOne(first, inbound, candidates, used, inboundToInbound)
		if ok {
			links = append(links, link)
		}
	}
	return links
}

// matchOne resolves a single first leg against the not-yet-consumed pool.
func (m *Matcher) matchOne(first firstLeg, inbound []*types.CallRecord, candidates map[string]legs.Info, used UsedSet, inboundToInbound bool) (types.TransferLink, bool) {
	queueExt := first.info.QueueExtension

	calleeExt, ok := m.resolver.CalleeExtension(queueExt)
	if !ok {
		// Configuration gap, not a data error: report and short-circuit.
		m.logger.Warn().Str("call_id", first.call.ID).Str("queue", queueExt).
			Msg("no callee extension configured for queue, skipping call")
		return types.TransferLink{}, false
	}

	firstNum := customerNumber(first.call)
	if !phone.LooksLikeCustomerNumber(firstNum) {
		// Extensions and noise do not establish a customer identity.
		firstNum = ""
	}

	var best *types.CallRecord
	var bestInfo legs.Info
	var bestDiff int64
	for _, cand := range inbound {
		if used.Used(cand.ID) || cand.ID == first.call.ID {
			continue
		}
		info, ok := candidates[cand.ID]
		if !ok || !info.SecondLeg || info.AgentEnterTime == 0 {
			continue
		}
		if !calleeAcceptable(cand, queueExt, calleeExt) {
			continue
		}
		if !customerAgrees(firstNum, cand) {
			continue
		}

		delta := info.AgentEnterTime - first.ref
		if inboundToInbound {
			if delta <= 0 || delta > maxLateSeconds {
				continue
			}
		} else if delta < -maxEarlySeconds || delta > maxLateSeconds {
			continue
		}

		diff := delta
		if diff < 0 {
			diff = -diff
		}
		if best == nil || diff < bestDiff {
			best, bestInfo, bestDiff = cand, info, diff
		}
	}

	if best == nil {
		if !inboundToInbound {
			return types.TransferLink{}, false
		}
		// The originating side shows a completed handoff; the missing
		// inbound record is a data-integrity gap between systems.
		link := types.TransferLink{
			FirstLeg:       first.call,
			QueueExtension: queueExt,
			TransferTime:   first.info.TransferTime,
			Status:         types.StatusFailed,
			StatusReason:   "no matching inbound call found",
		}
		if first.info.ReceivingAgent != "" {
			link.Status = types.StatusError
			link.StatusReason = "agent " + first.info.ReceivingAgent + " accepted the transfer but no inbound record was found"
		}
		return link, true
	}

	status, reason := ClassifySecondLeg(best)
	link := types.TransferLink{
		FirstLeg:        first.call,
		SecondLeg:       best,
		QueueExtension:  queueExt,
		TransferTime:    first.info.TransferTime,
		TransferredTime: bestInfo.AgentEnterTime,
		Status:          status,
		StatusReason:    reason,
	}
	used.Mark(best.ID)

	// Sibling abandoned attempts in the same hold window explain retries the
	// agent made before the queue finally delivered.
	link.FailedDialAttempts = m.foldAbandonedSiblings(first, queueExt, calleeExt, best.ID, inbound, used)

	m.logger.Debug().Str("first_leg", first.call.ID).Str("second_leg", best.ID).
		Str("status", string(status)).Int64("delta", bestDiff).
		Msg("transfer matched")

	return link, true
}

// foldAbandonedSiblings consumes abandoned inbound calls the first leg's
// agent dialed into the same queue during a hold window and collects their
// failed dial attempts.
func (m *Matcher) foldAbandonedSiblings(first firstLeg, queueExt, calleeExt, chosenID string, inbound []*types.CallRecord, used UsedSet) []types.FailedAgent {
	periods := holds.Periods(legs.HoldHistory(first.call))
	if len(periods) == 0 {
		return nil
	}

	var attempts []types.FailedAgent
	for _, cand := range inbound {
		if used.Used(cand.ID) || cand.ID == chosenID || cand.ID == first.call.ID {
			continue
		}
		if cand.CallerNumber != first.call.AgentExtension {
			continue
		}
		if cand.CalleeNumber != queueExt && cand.CalleeNumber != calleeExt {
			continue
		}
		if !isAbandoned(cand) {
			continue
		}
		if !holds.InAnyWindow(periods, cand.CalledTime, holdLeadIn) {
			continue
		}

		attempts = append(attempts, failedDialAttempts(cand)...)
		used.Mark(cand.ID)
	}
	return attempts
}

// classifyPool classifies every inbound call once; the result is reused
// across all first legs of a pass.
func classifyPool(inbound []*types.CallRecord) map[string]legs.Info {
	m := make(map[string]legs.Info, len(inbound))
	for _, call := range inbound {
		m[call.ID] = legs.Classify(call)
	}
	return m
}

// calleeAcceptable checks the queue/callee-id constraint: the candidate was
// delivered under the queue's callee extension, the raw queue extension, a
// queue extension recovered from its own attended transfer, or directly to
// a customer number.
func calleeAcceptable(cand *types.CallRecord, queueExt, calleeExt string) bool {
	if cand.CalleeNumber == calleeExt || cand.CalleeNumber == queueExt {
		return true
	}
	if legs.QueueFromAttendedTransfer(cand) == queueExt {
		return true
	}
	return phone.LooksLikeCustomerNumber(cand.CalleeNumber)
}

// customerAgrees applies the bidirectional phone constraint. A candidate
// delivered under a customer phone number may not pair with a first leg
// that has no customer identity of its own, and whichever side of the
// candidate carries a customer number must agree with the first leg's.
func customerAgrees(firstNum string, cand *types.CallRecord) bool {
	if firstNum == "" {
		return !phone.LooksLikeCustomerNumber(cand.CalleeNumber)
	}
	if phone.LooksLikeCustomerNumber(cand.CallerNumber) &&
		!phone.SameCustomer(firstNum, cand.CallerNumber) {
		return false
	}
	if phone.LooksLikeCustomerNumber(cand.CalleeNumber) &&
		!phone.SameCustomer(firstNum, cand.CalleeNumber) {
		return false
	}
	return true
}

// customerNumber extracts the customer identity of a first leg: the lead
// number for campaigns, the dialed number for outbound, the caller for
// inbound.
func customerNumber(call *types.CallRecord) string {
	switch call.Role {
	case types.RoleCampaign:
		return call.CustomerNumber
	case types.RoleOutbound:
		if call.CustomerNumber != "" {
			return call.CustomerNumber
		}
		return call.CalleeNumber
	case types.RoleInbound:
		return call.CallerNumber
	default:
		return ""
	}
}
