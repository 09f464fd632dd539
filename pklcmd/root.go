// package pklcmd implements the ricklepick command line tool.
package pklcmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/star"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"ricklepick.dev/ricklepick/pklext"
	"ricklepick.dev/ricklepick/pklhist"
	"ricklepick.dev/ricklepick/pklhttp"
	"ricklepick.dev/ricklepick/pvm"
)

func Root() star.Command {
	return root
}

var root = star.NewDir(star.Metadata{
	Short: "inspect pickle streams",
}, map[star.Symbol]star.Command{
	"decode": decodeCmd,
	"dis":    disCmd,
	"dump":   dumpCmd,
	"torch":  torchCmd,
	"serve":  serveCmd,
})

var fileParam = star.Param[*os.File]{
	Name: "f",
	Parse: func(x string) (*os.File, error) {
		return os.Open(x)
	},
}

var filesParam = star.Param[string]{
	Name:     "f",
	Repeated: true,
	Parse:    star.ParseString,
}

var formatParam = star.Param[string]{
	Name:    "format",
	Default: star.Ptr("pretty"),
	Parse: func(x string) (string, error) {
		switch x {
		case "pretty", "repr", "json":
			return x, nil
		}
		return "", fmt.Errorf("unknown format %q, want one of pretty, repr, json", x)
	},
}

var verboseParam = star.Param[bool]{
	Name:    "v",
	Default: star.Ptr("false"),
	Parse:   strconv.ParseBool,
}

var maxStepsParam = star.Param[uint64]{
	Name:    "max-steps",
	Default: star.Ptr("0"),
	Parse: func(x string) (uint64, error) {
		return strconv.ParseUint(x, 10, 64)
	},
}

var serveCmd = star.Command{
	Metadata: star.Metadata{
		Short: "serve decoding over HTTP",
	},
	Flags: []star.IParam{ListenerParam, DBParam, verboseParam},
	F: func(c star.Context) error {
		ctx, err := setup(c)
		if err != nil {
			return err
		}
		db := DBParam.Load(c)
		defer db.Close()
		if err := pklhist.Setup(ctx, db); err != nil {
			return err
		}
		return pklhttp.Serve(ctx, ListenerParam.Load(c), pklext.Defaults(), pklhist.New(db))
	},
}

// DBParam is the database recording decode history.
var DBParam = star.Param[*sqlx.DB]{
	Name:    "db",
	Default: star.Ptr(":memory:"),
	Parse:   pklhist.Open,
}

var ListenerParam = star.Param[net.Listener]{
	Name:    "l",
	Default: star.Ptr("127.0.0.1:6666"),
	Parse: func(x string) (net.Listener, error) {
		return net.Listen("tcp", x)
	},
}

// setup returns the context for a command, with a logger attached.
func setup(c star.Context) (context.Context, error) {
	l := zap.NewNop()
	if verboseParam.Load(c) {
		var err error
		if l, err = zap.NewDevelopment(); err != nil {
			return nil, err
		}
	}
	return logctx.NewContext(c.Context, l), nil
}

func machineOptions(ctx context.Context) []pvm.Option {
	return []pvm.Option{
		pvm.WithContext(ctx),
		pvm.WithRegistry(pklext.Defaults()),
	}
}
