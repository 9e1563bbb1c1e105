package core

// Policy decides which members leave the archive.
type Policy struct {
	// ExcludeOffsets lists member data offsets to drop regardless of
	// classification. Offsets are compared after truncation to 32 bits.
	ExcludeOffsets []uint32

	// ExcludeImportMembers drops import descriptors and objects that
	// have an .idata$ section.
	ExcludeImportMembers bool

	// CaptureExcluded keeps the excluded members so they can be written
	// to a second archive.
	CaptureExcluded bool
}

// Partition is the outcome of applying a Policy. Both lists keep
// container order.
type Partition struct {
	Kept     []Member
	Excluded []Member
}

// Reason explains why a member was excluded.
type Reason byte

const (
	ReasonKept         Reason = 0 // Not excluded
	ReasonOffset       Reason = 1 // Offset listed in ExcludeOffsets
	ReasonImportMember Reason = 2 // Import descriptor or .idata$ object
)

func (r Reason) String() string {
	switch r {
	case ReasonKept:
		return "kept"
	case ReasonOffset:
		return "excluded by offset"
	case ReasonImportMember:
		return "excluded as import member"
	default:
		return "unknown"
	}
}

// decide applies the policy to one member. An offset match takes
// precedence over classification.
func (p Policy) decide(c Classified, offsets map[uint32]struct{}) Reason {
	if _, ok := offsets[uint32(c.Member.Offset)]; ok {
		return ReasonOffset
	}
	if p.ExcludeImportMembers && c.Classification.ContributesImports() {
		return ReasonImportMember
	}
	return ReasonKept
}

// offsetSet builds the lookup set for ExcludeOffsets.
func (p Policy) offsetSet() map[uint32]struct{} {
	set := make(map[uint32]struct{}, len(p.ExcludeOffsets))
	for _, offset := range p.ExcludeOffsets {
		set[offset] = struct{}{}
	}
	return set
}

// PartitionMembers splits classified members into kept and excluded lists.
// Excluded members are only retained when the policy captures them.
func PartitionMembers(classified []Classified, policy Policy) Partition {
	result, _ := partition(classified, policy)
	return result
}

// partition also returns the decision for each member, by index.
func partition(classified []Classified, policy Policy) (Partition, []Reason) {
	offsets := policy.offsetSet()
	reasons := make([]Reason, len(classified))
	var result Partition
	for i, c := range classified {
		reasons[i] = policy.decide(c, offsets)
		switch {
		case reasons[i] == ReasonKept:
			result.Kept = append(result.Kept, c.Member)
		case policy.CaptureExcluded:
			result.Excluded = append(result.Excluded, c.Member)
		}
	}
	return result, reasons
}
