package log

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/mwantia/fabric/pkg/container"
)

var loggerServiceType = reflect.TypeOf((*LoggerService)(nil)).Elem()

// Resolve returns the LoggerService registered in sc. A non-empty path such
// as "api" or "store/sqlite" returns the logger named after each segment.
func Resolve(ctx context.Context, sc *container.ServiceContainer, path string) (LoggerService, error) {
	ok, resolved := sc.ResolveByType(ctx, loggerServiceType)
	if !ok {
		return nil, fmt.Errorf("no logger service registered")
	}

	logger, ok := resolved.(LoggerService)
	if !ok {
		return nil, fmt.Errorf("resolved service of type %T is not a logger", resolved)
	}

	for _, name := range strings.Split(path, "/") {
		if name = strings.TrimSpace(name); name != "" {
			logger = logger.Named(name)
		}
	}
	return logger, nil
}
