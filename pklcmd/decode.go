package pklcmd

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"go.brendoncarroll.net/star"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/pvm"
)

const traceLen = 8

var decodeCmd = star.Command{
	Metadata: star.Metadata{
		Short: "decode pickle files and print their values",
	},
	Flags: []star.IParam{formatParam, maxStepsParam, verboseParam},
	Pos:   []star.IParam{filesParam},
	F: func(c star.Context) error {
		ctx, err := setup(c)
		if err != nil {
			return err
		}
		paths := filesParam.LoadAll(c)
		maxSteps := maxStepsParam.Load(c)
		outs := make([]pklmem.Value, len(paths))
		eg, ctx := errgroup.WithContext(ctx)
		for i, p := range paths {
			eg.Go(func() error {
				x, err := decodeFile(ctx, p, maxSteps)
				if err != nil {
					return fmt.Errorf("%s: %w", p, err)
				}
				outs[i] = x
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
		for i, x := range outs {
			if len(paths) > 1 {
				c.Printf("%s:\n", paths[i])
			}
			out, err := format(x, formatParam.Load(c))
			if err != nil {
				return err
			}
			c.Printf("%s\n", out)
		}
		return nil
	},
}

func decodeFile(ctx context.Context, p string, maxSteps uint64) (pklmem.Value, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	opts := append(machineOptions(ctx), pvm.WithTrace(traceLen))
	m, err := pvm.New(bufio.NewReader(f), opts...)
	if err != nil {
		return nil, err
	}
	if maxSteps == 0 {
		maxSteps = ^uint64(0)
	}
	m.Run(maxSteps)
	switch m.State() {
	case pvm.Running:
		return nil, fmt.Errorf("stopped after %d steps at offset %d", m.Steps(), m.Offset())
	case pvm.Failed:
		for _, in := range m.Recent() {
			logctx.Info(ctx, "recent instruction", zap.Stringer("instr", in))
		}
	}
	return m.Result()
}

func format(x pklmem.Value, how string) (string, error) {
	switch how {
	case "json":
		data, err := pklmem.ToJSON(x)
		return string(data), err
	case "repr":
		return x.String(), nil
	default:
		return pklmem.Pretty(x), nil
	}
}

var disCmd = star.Command{
	Metadata: star.Metadata{
		Short: "print a listing of the instructions in a pickle file",
	},
	Flags: []star.IParam{verboseParam},
	Pos:   []star.IParam{fileParam},
	F: func(c star.Context) error {
		ctx, err := setup(c)
		if err != nil {
			return err
		}
		f := fileParam.Load(c)
		defer f.Close()
		return pvm.Disassemble(c.StdOut, bufio.NewReader(f), pvm.WithContext(ctx))
	},
}

var dumpCmd = star.Command{
	Metadata: star.Metadata{
		Short: "print the bytes of a pickle file along with its decoded value",
	},
	Flags: []star.IParam{verboseParam},
	Pos:   []star.IParam{fileParam},
	F: func(c star.Context) error {
		ctx, err := setup(c)
		if err != nil {
			return err
		}
		f := fileParam.Load(c)
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return err
		}
		c.Printf("FILE-SIZE: %d bytes\n", len(data))
		x, err := pvm.DecodeBytes(ctx, data, machineOptions(ctx)...)
		if err != nil {
			c.Printf("ERROR: %v\n", err)
		} else {
			c.Printf("ROOT-KIND: %v\n", x.Kind())
			c.Printf("ROOT: %v\n", pklmem.Pretty(x))
		}
		c.Printf("HEX:\n%s", hex.Dump(data))
		c.Printf("\n")
		return nil
	},
}
