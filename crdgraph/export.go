package crdgraph

// DataInfo describes one data object (field-equivalence class) in an
// ExportedGraph: its TypeTag and the field indices that alias it.
type DataInfo struct {
	Type   TypeTag
	Fields []FieldIndex
}

// ExportedStepLink is a combined explicit-or-implicit edge in an
// ExportedGraph. Source distinguishes the two so a consumer can still tell
// an author-declared ordering from one derived purely from shared data.
type ExportedStepLink struct {
	Before, After StepIndex
	Source        StepLinkSource
}

// StepLinkSource tags whether an ExportedStepLink came from an explicit
// LinkSteps call or was derived from a LinkFields usage pair.
type StepLinkSource int

const (
	SourceExplicit StepLinkSource = iota
	SourceImplicit
)

func (s StepLinkSource) String() string {
	if s == SourceImplicit {
		return "Implicit"
	}
	return "Explicit"
}

// ExportedGraph is the immutable snapshot GraphBuilder.Build consumes to
// assemble an ExecutableGraph. It is produced only by GraphCore.ExportGraph,
// which fails closed if the graph has any Diagnostics errors.
type ExportedGraph struct {
	StepCount int

	// DataObjects holds one DataInfo per field-equivalence class, indexed
	// by DataIndex — the only place a DataIndex is minted.
	DataObjects []DataInfo

	// FieldToData maps each FieldIndex to the DataIndex of its class.
	FieldToData []DataIndex

	// StepLinks is the combined explicit ∪ implicit edge set, in the order
	// explicit links were added followed by implicit links in the order
	// they were derived.
	StepLinks []ExportedStepLink
}

// ExportGraph validates the graph as sealed (treatAsSealed=true, so
// MissingCreate is an Error) and, if no errors are present, returns an
// immutable snapshot. The Diagnostics are always returned alongside so a
// caller can still inspect warnings on success.
func (g *GraphCore) ExportGraph() (*ExportedGraph, *Diagnostics, error) {
	diag := g.GetDiagnostics(true)
	if diag.HasErrors() {
		return nil, diag, newErr(ErrCycleDetected, "graph has %d validation error(s), see Diagnostics", len(diag.Errors()))
	}

	reps := g.FieldClassRepresentatives()
	fieldToData := make([]DataIndex, len(g.fieldOwner))
	dataObjects := make([]DataInfo, 0, len(reps))

	for i, rep := range reps {
		members, _ := g.FieldClassMembers(rep)
		di := DataIndex(i)
		for _, f := range members {
			fieldToData[f] = di
		}
		dataObjects = append(dataObjects, DataInfo{
			Type:   g.fieldType[rep],
			Fields: members,
		})
	}

	links := make([]ExportedStepLink, 0, len(g.stepLinks)+len(g.implicitEdges))
	for _, sl := range g.stepLinks {
		links = append(links, ExportedStepLink{Before: sl.Before, After: sl.After, Source: SourceExplicit})
	}
	for _, ie := range g.implicitEdges {
		links = append(links, ExportedStepLink{Before: ie.Before, After: ie.After, Source: SourceImplicit})
	}

	return &ExportedGraph{
		StepCount:   g.stepCount,
		DataObjects: dataObjects,
		FieldToData: fieldToData,
		StepLinks:   links,
	}, diag, nil
}
