package crdgraph

import "sort"

// Category tags a DiagnosticItem's kind.
type Category int

const (
	CategoryCycle Category = iota
	CategoryMultipleCreate
	CategoryMultipleDestroy
	CategoryUnsafeSelfAliasing
	CategoryTypeMismatch
	CategoryMissingCreate
	CategoryOrphanStep
	CategoryUnusedData
	CategoryInternalError
)

func (c Category) String() string {
	switch c {
	case CategoryCycle:
		return "Cycle"
	case CategoryMultipleCreate:
		return "MultipleCreate"
	case CategoryMultipleDestroy:
		return "MultipleDestroy"
	case CategoryUnsafeSelfAliasing:
		return "UnsafeSelfAliasing"
	case CategoryTypeMismatch:
		return "TypeMismatch"
	case CategoryMissingCreate:
		return "MissingCreate"
	case CategoryOrphanStep:
		return "OrphanStep"
	case CategoryUnusedData:
		return "UnusedData"
	case CategoryInternalError:
		return "InternalError"
	default:
		return "Category(?)"
	}
}

// Severity is a diagnostic's default severity, except MissingCreate which is
// seal-sensitive (Warning unsealed, Error sealed).
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "Error"
	}
	return "Warning"
}

// DiagnosticItem is one reported finding. BlamedStepLinks and
// BlamedFieldLinks are ordered by ascending trust (Low first), so the least
// trusted contributor is always blamed first.
type DiagnosticItem struct {
	Category       Category
	Severity       Severity
	Message        string
	InvolvedSteps  []StepIndex
	InvolvedFields []FieldIndex

	BlamedStepLinks  []StepLinkIndex
	BlamedFieldLinks []FieldLinkIndex
}

// Diagnostics is the deferred validation report produced by
// GraphCore.GetDiagnostics.
type Diagnostics struct {
	items []DiagnosticItem
}

// Errors returns only the Error-severity items, in the order computed.
func (d *Diagnostics) Errors() []DiagnosticItem {
	return d.filter(SeverityError)
}

// Warnings returns only the Warning-severity items, in the order computed.
func (d *Diagnostics) Warnings() []DiagnosticItem {
	return d.filter(SeverityWarning)
}

func (d *Diagnostics) filter(sev Severity) []DiagnosticItem {
	var out []DiagnosticItem
	for _, it := range d.items {
		if it.Severity == sev {
			out = append(out, it)
		}
	}
	return out
}

// AllItems returns every item, errors before warnings.
func (d *Diagnostics) AllItems() []DiagnosticItem {
	out := make([]DiagnosticItem, 0, len(d.items))
	out = append(out, d.Errors()...)
	out = append(out, d.Warnings()...)
	return out
}

// HasErrors reports whether any Error-severity item is present.
func (d *Diagnostics) HasErrors() bool {
	for _, it := range d.items {
		if it.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasWarnings reports whether any Warning-severity item is present.
func (d *Diagnostics) HasWarnings() bool {
	for _, it := range d.items {
		if it.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// IsValid reports whether the graph has no errors (warnings are allowed).
func (d *Diagnostics) IsValid() bool { return !d.HasErrors() }

// GetDiagnostics runs the full deferred validation pipeline: usage-
// constraint checks over every field-equivalence class, orphan-step
// detection, and the Kahn-detect/Tarjan-report cycle pipeline.
// treatAsSealed controls whether MissingCreate is a Warning or an Error —
// GraphCore itself never tracks a "sealed" flag (§4 design note), the
// caller decides per call.
func (g *GraphCore) GetDiagnostics(treatAsSealed bool) *Diagnostics {
	d := &Diagnostics{}

	g.usageConstraintDiagnostics(d, treatAsSealed)
	g.orphanStepDiagnostics(d)
	g.cycleDiagnostics(d)

	return d
}

// usageConstraintDiagnostics enumerates every field-equivalence class and
// reports MultipleCreate, MultipleDestroy, UnsafeSelfAliasing, MissingCreate
// and UnusedData per §4.4's table.
func (g *GraphCore) usageConstraintDiagnostics(d *Diagnostics, treatAsSealed bool) {
	for _, rep := range g.FieldClassRepresentatives() {
		members, _ := g.FieldClassMembers(rep)

		var creates, reads, destroys []FieldIndex
		byStep := make(map[StepIndex][]FieldIndex)
		for _, f := range members {
			switch g.fieldUsage[f] {
			case Create:
				creates = append(creates, f)
			case Read:
				reads = append(reads, f)
			case Destroy:
				destroys = append(destroys, f)
			}
			byStep[g.fieldOwner[f]] = append(byStep[g.fieldOwner[f]], f)
		}

		classSteps, classFields := classIndices(members, g.fieldOwner)

		if len(creates) > 1 {
			d.items = append(d.items, DiagnosticItem{
				Category:         CategoryMultipleCreate,
				Severity:         SeverityError,
				Message:          "field class has more than one Create field",
				InvolvedSteps:    classSteps,
				InvolvedFields:   classFields,
				BlamedFieldLinks: g.blameFieldLinksForClass(members),
			})
		}
		if len(destroys) > 1 {
			d.items = append(d.items, DiagnosticItem{
				Category:         CategoryMultipleDestroy,
				Severity:         SeverityError,
				Message:          "field class has more than one Destroy field",
				InvolvedSteps:    classSteps,
				InvolvedFields:   classFields,
				BlamedFieldLinks: g.blameFieldLinksForClass(members),
			})
		}

		for step, fields := range byStep {
			usages := make([]Usage, len(fields))
			for i, f := range fields {
				usages[i] = g.fieldUsage[f]
			}
			if unsafeSelfAlias(usages) {
				d.items = append(d.items, DiagnosticItem{
					Category:         CategoryUnsafeSelfAliasing,
					Severity:         SeverityError,
					Message:          "step owns aliased fields with incompatible usages",
					InvolvedSteps:    []StepIndex{step},
					InvolvedFields:   fields,
					BlamedFieldLinks: g.blameFieldLinksForClass(members),
				})
			}
		}

		hasCreate := len(creates) > 0
		hasReadOrDestroy := len(reads) > 0 || len(destroys) > 0
		if hasReadOrDestroy && !hasCreate {
			sev := SeverityWarning
			if treatAsSealed {
				sev = SeverityError
			}
			d.items = append(d.items, DiagnosticItem{
				Category:         CategoryMissingCreate,
				Severity:         sev,
				Message:          "field class has a Read or Destroy but no Create",
				InvolvedSteps:    classSteps,
				InvolvedFields:   classFields,
				BlamedFieldLinks: g.blameFieldLinksForClass(members),
			})
		}
		if hasCreate && len(reads) == 0 && len(destroys) == 0 {
			d.items = append(d.items, DiagnosticItem{
				Category:       CategoryUnusedData,
				Severity:       SeverityWarning,
				Message:        "field class has a Create but is never Read or Destroyed",
				InvolvedSteps:  classSteps,
				InvolvedFields: classFields,
			})
		}
	}
}

// orphanStepDiagnostics reports steps with no fields and no explicit links.
func (g *GraphCore) orphanStepDiagnostics(d *Diagnostics) {
	for s := 0; s < g.stepCount; s++ {
		if !g.stepTouched[s] {
			d.items = append(d.items, DiagnosticItem{
				Category:      CategoryOrphanStep,
				Severity:      SeverityWarning,
				Message:       "step has no fields and no explicit links",
				InvolvedSteps: []StepIndex{StepIndex(s)},
			})
		}
	}
}

// classIndices derives the deduplicated, sorted step and field index sets
// for a set of class members.
func classIndices(members []FieldIndex, owner []StepIndex) ([]StepIndex, []FieldIndex) {
	stepSet := make(map[StepIndex]struct{}, len(members))
	for _, f := range members {
		stepSet[owner[f]] = struct{}{}
	}
	steps := make([]StepIndex, 0, len(stepSet))
	for s := range stepSet {
		steps = append(steps, s)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i] < steps[j] })

	fields := append([]FieldIndex(nil), members...)
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	return steps, fields
}

// blameFieldLinksForClass collects the indices of every recorded field link
// touching this class, trust-ordered ascending so the least trusted
// contributor is blamed first. Used as the blame list for usage-constraint
// diagnostics, which — unlike Cycle diagnostics — blame the links that built
// the offending class rather than a specific edge.
func (g *GraphCore) blameFieldLinksForClass(members []FieldIndex) []FieldLinkIndex {
	memberSet := make(map[FieldIndex]struct{}, len(members))
	for _, f := range members {
		memberSet[f] = struct{}{}
	}

	type scored struct {
		idx   FieldLinkIndex
		trust Trust
	}
	var found []scored
	for i, fl := range g.fieldLinks {
		_, inA := memberSet[fl.A]
		_, inB := memberSet[fl.B]
		if inA || inB {
			found = append(found, scored{idx: FieldLinkIndex(i), trust: fl.Trust})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].trust < found[j].trust })

	out := make([]FieldLinkIndex, len(found))
	for i, s := range found {
		out[i] = s.idx
	}
	return out
}
