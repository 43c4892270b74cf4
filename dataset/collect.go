package dataset

import (
	"fmt"
	"path/filepath"
	"sort"
)

// ClassPaths maps a class label to its ordered list of image paths. The
// order within a class is the listing order of the directory glob and
// determines which paths fall into the validation split. Paths are not
// deduplicated.
type ClassPaths map[string][]string

// Labels returns the class labels in ascending order.
func (p ClassPaths) Labels() []string {
	labels := make([]string, 0, len(p))
	for label := range p {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Total returns the number of paths across all classes.
func (p ClassPaths) Total() int {
	n := 0
	for _, class := range p {
		n += len(class)
	}
	return n
}

// Collect lists, for each class label in classes, the files under
// root/<dir> matching pattern. The glob is non-recursive and returns
// matches in lexical order. A missing class directory yields an empty
// list, not an error; only a malformed pattern fails.
func Collect(classes map[string]string, root, pattern string) (ClassPaths, error) {
	paths := make(ClassPaths, len(classes))
	for label, dir := range classes {
		matches, err := filepath.Glob(filepath.Join(root, dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to list class %q: %w", label, err)
		}
		paths[label] = matches
	}
	return paths, nil
}

// LimitPerClass caps each class at its first n paths. A non-positive n
// leaves paths unchanged.
func LimitPerClass(paths ClassPaths, n int) ClassPaths {
	if n <= 0 {
		return paths
	}
	out := make(ClassPaths, len(paths))
	for label, class := range paths {
		if len(class) > n {
			class = class[:n]
		}
		out[label] = class
	}
	return out
}
