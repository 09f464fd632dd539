package pklcmd

import (
	"go.brendoncarroll.net/star"

	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/pkltorch"
)

var torchCmd = star.NewDir(star.Metadata{
	Short: "inspect torch checkpoints",
}, map[star.Symbol]star.Command{
	"tensors": torchTensorsCmd,
	"show":    torchShowCmd,
})

var torchTensorsCmd = star.Command{
	Metadata: star.Metadata{
		Short: "list the tensors in a checkpoint",
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
		x, err := pkltorch.LoadFromFile(ctx, f, pkltorch.WithoutData())
		if err != nil {
			return err
		}
		c.Printf("%-40s %-10s %-16s %s\n", "NAME", "DTYPE", "SHAPE", "STORAGE")
		for nt := range pkltorch.Tensors(x) {
			t := nt.Tensor
			c.Printf("%-40s %-10s %-16v %s[%d]\n", nt.Name, t.DType(), t.Shape, t.Storage.Key, t.Offset)
		}
		return nil
	},
}

var torchShowCmd = star.Command{
	Metadata: star.Metadata{
		Short: "print the object in a checkpoint, without storage contents",
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
		x, err := pkltorch.LoadFromFile(ctx, f, pkltorch.WithoutData())
		if err != nil {
			return err
		}
		c.Printf("%s\n", pklmem.Pretty(x))
		return nil
	},
}
