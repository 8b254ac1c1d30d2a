package reactive

import (
	"regexp"
	"strconv"
	"strings"
)

var bailRE = regexp.MustCompile(`[^\p{L}\p{N}_.$]`)

// parsePath compiles a dot-delimited path into a getter. It returns nil for
// anything that is not a simple path.
func parsePath(path string) Getter {
	if path == "" || bailRE.MatchString(path) {
		return nil
	}
	segments := strings.Split(path, ".")
	for _, s := range segments {
		if s == "" {
			return nil
		}
	}
	return func(vm any) (any, error) {
		v := vm
		for _, s := range segments {
			switch x := v.(type) {
			case *Object:
				v = x.Get(s)
			case *Array:
				i, err := strconv.Atoi(s)
				if err != nil {
					return nil, nil
				}
				v = x.At(i)
			default:
				return nil, nil
			}
		}
		return v, nil
	}
}
