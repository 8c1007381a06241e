package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/go-park/weaver/pkg/metadata"
	"github.com/go-park/weaver/pkg/tools/collections"
	"github.com/go-park/weaver/pkg/validator"
)

// getAllPathPatterns expands directory patterns to every package directory
// below them, skipping the directories the go tool ignores.
func getAllPathPatterns(patterns []string, logger logrus.FieldLogger) []string {
	var list []string
	for _, v := range patterns {
		root := filepath.Clean(v)
		_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				logger.WithError(err).WithField("path", path).Warn("skip path")
				return nil
			}
			if !info.IsDir() {
				return nil
			}
			name := info.Name()
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
				name == "testdata" || name == "vendor") {
				return filepath.SkipDir
			}
			if filepath.IsAbs(path) {
				list = append(list, path)
			} else {
				list = append(list, strings.Join([]string{".", path}, string(filepath.Separator)))
			}
			return nil
		})
	}
	return list
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func filterEmptyStr(ss ...string) []string {
	return collections.Filter(ss, func(s string) bool {
		return len(strings.TrimSpace(s)) > 0
	})
}

// ProviderResolver resolves implementation identifiers against p: a type name
// such as "app.Log", or a member name such as "app.Log.Trace".
func ProviderResolver(p metadata.Provider) validator.Resolver {
	return validator.ResolverFunc(func(id string) error {
		if _, err := p.Type(id); err == nil {
			return nil
		}
		i := strings.LastIndex(id, ".")
		if i < 0 {
			return fmt.Errorf("type %q: %w", id, metadata.ErrNotFound)
		}
		_, err := p.Member(id[:i], id[i+1:])
		return err
	})
}
