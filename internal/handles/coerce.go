package handles

import "github.com/flowdeck/flowdeck/pkg/schema"

// coercions lists the accepted source→target conversions beyond identity
// and the `any` wildcard. Binary is asymmetric: binary decodes to text but
// text never silently becomes binary.
var coercions = map[schema.HandleType][]schema.HandleType{
	schema.HandleText:   {schema.HandleJSON, schema.HandleNumber, schema.HandleFloat},
	schema.HandleJSON:   {schema.HandleText, schema.HandleRows},
	schema.HandleNumber: {schema.HandleFloat, schema.HandleText},
	schema.HandleFloat:  {schema.HandleNumber, schema.HandleText},
	schema.HandleRows:   {schema.HandleJSON},
	schema.HandleBinary: {schema.HandleText},
}

// Compatible reports whether a value of type src may flow into a port of
// type dst. Rules, first match wins: `any` on either side accepts,
// identical types accept, then the coercion table.
func Compatible(src, dst schema.HandleType) bool {
	if src == schema.HandleAny || dst == schema.HandleAny {
		return true
	}
	if src == dst {
		return true
	}
	for _, t := range coercions[src] {
		if t == dst {
			return true
		}
	}
	return false
}
