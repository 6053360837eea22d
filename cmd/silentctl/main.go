package main

import (
	"fmt"
	"os"

	"gopkg.in/urfave/cli.v1"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "silentctl"
	app.Usage = "operator tooling for silent threshold encryption nodes"
	app.Version = "0.1.0"

	srsFlag := cli.StringFlag{Name: "srs", Value: "srs.bin", Usage: "SRS file written by setup"}
	nFlag := cli.IntFlag{Name: "n", Value: 16, Usage: "committee size (power of two)"}
	keystoreFlag := cli.StringFlag{Name: "keystore", Value: "ste_secret.dat", Usage: "secret key file; encryption from STE_KEYSTORE_* env"}
	strategyFlag := cli.StringFlag{Name: "strategy", Value: "online", Usage: "public key derivation: online or table"}

	app.Commands = []cli.Command{
		{
			Name:  "setup",
			Usage: "write an SRS file from a ceremony transcript, or a throwaway dev SRS",
			Flags: []cli.Flag{
				nFlag,
				cli.StringFlag{Name: "out", Value: "srs.bin", Usage: "output path"},
				cli.StringFlag{Name: "transcript", Usage: "ceremony transcript JSON; dev setup when empty"},
				cli.IntFlag{Name: "index", Usage: "sub-ceremony index in the transcript"},
			},
			Action: setupAction,
		},
		{
			Name:   "keygen",
			Usage:  "generate a party secret into the keystore and write its public key",
			Flags:  []cli.Flag{srsFlag, nFlag, keystoreFlag, strategyFlag, cli.IntFlag{Name: "party", Value: 1, Usage: "party id in [1, n)"}, cli.StringFlag{Name: "seed", Usage: "hex key material (>= 32 bytes) for deterministic keys"}, cli.StringFlag{Name: "out", Value: "ste_public.json", Usage: "public key output"}},
			Action: keygenAction,
		},
		{
			Name:   "pubkey",
			Usage:  "derive the public key of the secret in the keystore",
			Flags:  []cli.Flag{srsFlag, nFlag, keystoreFlag, strategyFlag, cli.StringFlag{Name: "out", Usage: "write JSON here instead of stdout"}},
			Action: pubkeyAction,
		},
		{
			Name:      "verify-key",
			Usage:     "check the hints of a published public key",
			ArgsUsage: "<public key JSON>",
			Flags:     []cli.Flag{srsFlag, nFlag},
			Action:    verifyKeyAction,
		},
	}
	return app
}
