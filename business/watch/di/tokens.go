// Package di contains dependency injection tokens for the watch context.
package di

import (
	"github.com/fd1az/chainkit/business/watch/app"
	"github.com/fd1az/chainkit/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Watcher = di.NewToken[*app.Watcher]("watch.Watcher")
)

// Private dependency tokens - internal to watch module
var (
	Binder   = di.NewToken[app.Binder]("watch:binder")
	Reporter = di.NewToken[app.Reporter]("watch:reporter")
)

func GetWatcher(c di.ServiceRegistry) *app.Watcher {
	return di.GetToken(c, Watcher)
}

func GetBinder(c di.ServiceRegistry) app.Binder {
	return di.GetToken(c, Binder)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}
