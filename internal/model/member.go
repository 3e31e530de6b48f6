package model

// MemberState is the view of a community member that offers are built from.
// Units:
// - NetLoad: kWh per session, positive = consuming, negative = injecting
// - BuyCost, SellCost: €/kWh opportunity costs with the member's retailer
//
// A MemberState is a snapshot: it is never modified once built. Each
// optimizer result produces a new set through Members.WithNetLoads.
type MemberState struct {
	ID       string
	NetLoad  []float64
	BuyCost  []float64
	SellCost []float64
}

// Members is an ordered set of member snapshots. Order is preserved in
// offers so that screening ties resolve deterministically.
type Members []MemberState

// WithNetLoads returns a new snapshot set where each member found in netLoads
// has its net-load series replaced. Members missing from netLoads keep their
// current series, so scheduler results must be checked for completeness
// before they get here. The receiver is left untouched.
func (m Members) WithNetLoads(netLoads map[string][]float64) Members {
	out := make(Members, len(m))
	for i, st := range m {
		next := MemberState{
			ID:       st.ID,
			NetLoad:  st.NetLoad,
			BuyCost:  st.BuyCost,
			SellCost: st.SellCost,
		}
		if nl, ok := netLoads[st.ID]; ok {
			next.NetLoad = append([]float64(nil), nl...)
		}
		out[i] = next
	}
	return out
}

// NetLoad returns the net-load series of a member, or nil.
func (m Members) NetLoad(id string) []float64 {
	for _, st := range m {
		if st.ID == id {
			return st.NetLoad
		}
	}
	return nil
}
