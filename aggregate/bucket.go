package aggregate

// bucketKey identifies a ComponentVersionBucket (spec.md §4.6 bucket
// merging, §9 "Cyclic ownership": buckets are identified by (name,
// version), never by pointer identity).
type bucketKey struct {
	Name    string
	Version string
}

// Aggregator accumulates origins and their files into component-version
// buckets (spec.md §4.6). Origins with an identical (name, version) merge
// into one bucket: non-array scalar fields are last-write-wins in
// discovery order, nav is kept from the first origin that supplies a
// non-null array, asciidoc is never merged (each origin keeps its own
// descriptor value; the bucket-level field just takes the latest), files
// are concatenated, and origins preserves every contributor.
type Aggregator struct {
	order   []bucketKey
	buckets map[bucketKey]*ComponentVersionBucket
	navSet  map[bucketKey]bool
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		buckets: make(map[bucketKey]*ComponentVersionBucket),
		navSet:  make(map[bucketKey]bool),
	}
}

// AddOrigin merges one origin's descriptor and files into the (name,
// version) bucket, creating it on first sight. Call order is discovery
// order, since that is what governs last-write-wins and nav precedence.
func (a *Aggregator) AddOrigin(name, version string, origin Origin, files []VirtualFile) {
	key := bucketKey{Name: name, Version: version}
	b, ok := a.buckets[key]
	if !ok {
		b = &ComponentVersionBucket{Name: name, Version: version}
		a.buckets[key] = b
		a.order = append(a.order, key)
	}

	d := origin.Descriptor
	if d.Title != "" {
		b.Title = d.Title
	}
	if d.DisplayVersion != "" {
		b.DisplayVersion = d.DisplayVersion
	}
	if d.StartPage != "" {
		b.StartPage = d.StartPage
	}
	if d.Prerelease != nil {
		b.Prerelease = d.Prerelease
	}
	if d.AsciiDoc != nil {
		b.AsciiDoc = d.AsciiDoc
	}
	if d.NavSet && d.Nav != nil && !a.navSet[key] {
		b.Nav = d.Nav
		a.navSet[key] = true
	}

	b.Origins = append(b.Origins, origin)
	b.Files = append(b.Files, files...)
}

// Buckets returns every accumulated bucket in discovery order (spec.md §9:
// callers are responsible for any further sort).
func (a *Aggregator) Buckets() []*ComponentVersionBucket {
	out := make([]*ComponentVersionBucket, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, a.buckets[key])
	}
	return out
}
