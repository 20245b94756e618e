package layer

// essentialAttrs is the allow-list of attribute names kept by Normalize.
// Provider tag sets are open-ended; everything outside this list is
// dropped to keep exported schemas stable.
var essentialAttrs = map[string]struct{}{
	"name":     {},
	"highway":  {},
	"building": {},
	"amenity":  {},
	"waterway": {},
	"leisure":  {},
	AttrSource: {},
	AttrTileID: {},
}

// Normalize reduces a layer's attributes to the essential allow-list
// plus provenance. If no feature carries any non-provenance essential
// attribute, the layer is returned unmodified so a geometry-only layer
// is never stripped of whatever signal it has.
func Normalize(l *Layer) *Layer {
	if l == nil || l.Empty() {
		return l
	}

	keeps := false
	for _, f := range l.Features {
		for k := range f.Attributes {
			if k == AttrSource || k == AttrTileID {
				continue
			}
			if _, ok := essentialAttrs[k]; ok {
				keeps = true
				break
			}
		}
		if keeps {
			break
		}
	}
	if !keeps {
		return l
	}

	out := New(l.Name)
	out.Features = make([]Feature, 0, len(l.Features))
	for _, f := range l.Features {
		attrs := make(map[string]any)
		for k, v := range f.Attributes {
			if _, ok := essentialAttrs[k]; ok {
				attrs[k] = v
			}
		}
		out.Append(Feature{Geometry: f.Geometry, Attributes: attrs})
	}
	return out
}
