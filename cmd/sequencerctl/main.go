package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/Layr-Labs/bridge-commitment-engine/pkg/builder"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/commitment"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/config"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/logger"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/store"
	storeBadger "github.com/Layr-Labs/bridge-commitment-engine/pkg/store/badger"
)

func main() {
	app := &cli.App{
		Name:  "sequencerctl",
		Usage: "Operator CLI for the bridge commitment tree engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "persistence-data-path",
				Usage:   "Data directory for the Badger commitment store",
				Value:   "./sequencer-data",
				EnvVars: []string{config.EnvPersistenceDataPath},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "inspect-commitment",
				Usage:     "Print the stored record for a commitment id",
				ArgsUsage: "<id>",
				Action:    inspectCommitment,
			},
			{
				Name:  "rebuild",
				Usage: "Replay included rows and print the reconstructed root",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "kind",
						Usage:    "mmr or poseidon",
						Required: true,
					},
				},
				Action: rebuild,
			},
			{
				Name:      "dump-proof",
				Usage:     "Print the inclusion proof for a commitment id",
				ArgsUsage: "<id>",
				Action:    dumpProof,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func openStore(c *cli.Context) (store.ICommitmentStore, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return storeBadger.New(c.String("persistence-data-path"), l)
}

func parseID(args cli.Args) (uint64, error) {
	if args.Len() != 1 {
		return 0, fmt.Errorf("expected exactly one argument: <id>")
	}
	id, err := strconv.ParseUint(args.First(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid commitment id %q: %w", args.First(), err)
	}
	return id, nil
}

// findByID scans both accumulator kinds' pending and included rows.
// sequencerctl is an operator tool run against a stopped or read-replica
// store; it favors a simple linear scan over adding a get-by-id method
// to the hot-path ICommitmentStore interface.
func findByID(st store.ICommitmentStore, id uint64) (*commitment.Commitment, error) {
	for _, kind := range []commitment.AccumulatorKind{commitment.AccumulatorMMR, commitment.AccumulatorPoseidon} {
		if rows, err := st.FetchAllIncludedOrdered(kind); err == nil {
			for _, row := range rows {
				if row.ID == id {
					return row, nil
				}
			}
		}
		if rows, err := st.FetchPending(kind, 0); err == nil {
			for _, row := range rows {
				if row.ID == id {
					return row, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("no such commitment id %d", id)
}

func inspectCommitment(c *cli.Context) error {
	id, err := parseID(c.Args())
	if err != nil {
		return err
	}

	st, err := openStore(c)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	row, err := findByID(st, id)
	if err != nil {
		return err
	}

	enc, err := json.MarshalIndent(row, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(enc))
	return nil
}

func dumpProof(c *cli.Context) error {
	id, err := parseID(c.Args())
	if err != nil {
		return err
	}

	st, err := openStore(c)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	row, err := findByID(st, id)
	if err != nil {
		return err
	}
	if !row.Included || row.Proof == nil {
		return fmt.Errorf("commitment %d is not yet included", id)
	}

	enc, err := json.MarshalIndent(row.Proof, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(enc))
	return nil
}

func rebuild(c *cli.Context) error {
	var kind commitment.AccumulatorKind
	switch c.String("kind") {
	case "mmr":
		kind = commitment.AccumulatorMMR
	case "poseidon":
		kind = commitment.AccumulatorPoseidon
	default:
		return fmt.Errorf("--kind must be 'mmr' or 'poseidon', got %q", c.String("kind"))
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	st, err := storeBadger.New(c.String("persistence-data-path"), l)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	cfg := builder.DefaultConfig()
	b := builder.New(kind, st, cfg, l, nil)
	if err := b.Rebuild(); err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	root := b.Root()
	fmt.Printf("kind=%s leaves=%d root=0x%x\n", kind, b.LeafCount(), root)
	return nil
}
