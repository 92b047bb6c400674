// Package tx contains offline transaction tooling commands: decoding,
// re-encoding, signing and signature checking.
package tx

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	ojson "github.com/nspcc-dev/go-ordered-json"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/H01mes/qoober-node-1/pkg/config"
	"github.com/H01mes/qoober-node-1/pkg/core/transaction"
)

// NewCommands returns the 'tx' command set.
func NewCommands() []cli.Command {
	cfgFlag := cli.StringFlag{
		Name:  "config-file, c",
		Usage: "path to the protocol configuration yaml",
	}
	return []cli.Command{{
		Name:  "tx",
		Usage: "Transaction tooling",
		Subcommands: []cli.Command{
			{
				Name:      "decode",
				Usage:     "Decode wire bytes into the canonical JSON form",
				ArgsUsage: "<hex>",
				Flags:     []cli.Flag{cfgFlag},
				Action:    decode,
			},
			{
				Name:      "json",
				Usage:     "Encode a canonical JSON transaction into wire bytes",
				ArgsUsage: "<file>",
				Flags:     []cli.Flag{cfgFlag},
				Action:    encode,
			},
			{
				Name:      "sign",
				Usage:     "Sign an unsigned transaction given as wire bytes",
				ArgsUsage: "<hex>",
				Flags: []cli.Flag{cfgFlag, cli.StringFlag{
					Name:  "secret, s",
					Usage: "secret phrase to sign with",
				}, cli.BoolFlag{
					Name:  "debug, d",
					Usage: "enable debug logging",
				}},
				Action: sign,
			},
			{
				Name:      "verify",
				Usage:     "Check the signature of a signed transaction",
				ArgsUsage: "<hex>",
				Flags:     []cli.Flag{cfgFlag},
				Action:    verify,
			},
		},
	}}
}

func newContext(ctx *cli.Context) (*transaction.Context, error) {
	cfg, err := config.Load(ctx.String("config-file"))
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	return &transaction.Context{
		Config: cfg,
		Chain:  offlineChain{},
		Ledger: offlineLedger{},
		Clock:  protocolClock{},
	}, nil
}

func readTxArg(ctx *cli.Context) ([]byte, error) {
	if ctx.NArg() != 1 {
		return nil, cli.NewExitError("transaction hex is required", 1)
	}
	data, err := hex.DecodeString(ctx.Args().First())
	if err != nil {
		return nil, cli.NewExitError(fmt.Errorf("invalid transaction hex: %w", err), 1)
	}
	return data, nil
}

func decode(ctx *cli.Context) error {
	tctx, err := newContext(ctx)
	if err != nil {
		return err
	}
	data, err := readTxArg(ctx)
	if err != nil {
		return err
	}
	builder, err := tctx.NewBuilderFromBytes(data)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	t, err := builder.Build()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	out, err := ojson.MarshalIndent(t.JSONObject(), "", " ")
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, string(out))
	return nil
}

func encode(ctx *cli.Context) error {
	tctx, err := newContext(ctx)
	if err != nil {
		return err
	}
	if ctx.NArg() != 1 {
		return cli.NewExitError("transaction JSON file is required", 1)
	}
	data, err := os.ReadFile(ctx.Args().First())
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	builder, err := tctx.NewBuilderFromJSON(data)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	t, err := builder.Build()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	wire, err := t.Bytes()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, hex.EncodeToString(wire))
	return nil
}

func sign(ctx *cli.Context) error {
	log := zap.NewNop()
	if ctx.Bool("debug") {
		log, _ = zap.NewDevelopment()
	}
	tctx, err := newContext(ctx)
	if err != nil {
		return err
	}
	data, err := readTxArg(ctx)
	if err != nil {
		return err
	}
	secret := ctx.String("secret")
	if secret == "" {
		return cli.NewExitError("secret phrase is required", 1)
	}
	builder, err := tctx.NewBuilderFromBytes(data)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	t, err := builder.Sign(secret)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	wire, err := t.Bytes()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	id, err := t.StringID()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fullHash, err := t.FullHash()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log.Debug("transaction signed",
		zap.String("id", id),
		zap.Int("size", t.Size()))
	fmt.Fprintf(ctx.App.Writer, "bytes: %s\nid: %s\nfull hash: %s\n",
		hex.EncodeToString(wire), id, hex.EncodeToString(fullHash))
	return nil
}

func verify(ctx *cli.Context) error {
	tctx, err := newContext(ctx)
	if err != nil {
		return err
	}
	data, err := readTxArg(ctx)
	if err != nil {
		return err
	}
	builder, err := tctx.NewBuilderFromBytes(data)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	t, err := builder.Build()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if !t.VerifySignature() {
		return cli.NewExitError("signature is INVALID", 1)
	}
	id, _ := t.StringID()
	fmt.Fprintf(ctx.App.Writer, "signature is valid, transaction id %s\n", id)
	return nil
}

// offlineChain is the chain facade of a node-less tool: height zero and no
// economic cluster resolution.
type offlineChain struct{}

func (offlineChain) Height() int32 { return 0 }

func (offlineChain) ECBlock(int32) (int32, uint64) { return 0, 0 }

// offlineLedger accepts any key binding and knows no accounts.
type offlineLedger struct{}

func (offlineLedger) PublicKey(uint64) []byte { return nil }

func (offlineLedger) SetOrVerify(uint64, []byte) bool { return true }

func (offlineLedger) Account(uint64) transaction.Account { return nil }

func (offlineLedger) AddOrGetAccount(uint64) transaction.Account { return nil }

type protocolClock struct{}

func (protocolClock) Time() int32 {
	return int32(time.Now().Unix() - config.EpochBeginning)
}
