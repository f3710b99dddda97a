package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"gitee.com/kvnode/kvnode/pkg/bulk"
	"gitee.com/kvnode/kvnode/pkg/kvpb"
	"gitee.com/kvnode/kvnode/pkg/settings"
	"gitee.com/kvnode/kvnode/pkg/util/humanizeutil"
	"gitee.com/kvnode/kvnode/pkg/util/log"
)

var (
	bulkLoadEnginePath    string
	bulkLoadInputPath     string
	bulkLoadCommitTS      uint64
	bulkLoadMaxRanges     int
	bulkLoadMinRangeSize  string
	bulkLoadSSTOutputPath string
)

var bulkLoadCmd = &cobra.Command{
	Use:   "bulk-load",
	Short: "stage a batch of key/value pairs and plan its output ranges",
	Long: `
bulk-load reads tab-separated "key<TAB>value" lines from --input, writes
them into a Bulk Engine at --path as a single write batch committed at
--commit-ts, and prints the contiguous ranges the Range Planner would
split the result along. With --sst-out, it also drains the staged data
into SST files (one per column family per range boundary is left to a
follow-up ingest step; this command emits at most one default and one
write file for the whole staged key range, and the default file only
when some value is longer than the short-value threshold).
`,
	Args: cobra.NoArgs,
	RunE: runBulkLoad,
}

func init() {
	flags := bulkLoadCmd.Flags()
	flags.StringVar(&bulkLoadEnginePath, "path", "", "directory for the Bulk Engine's staging LSM (required)")
	flags.StringVar(&bulkLoadInputPath, "input", "", "path to a TSV file of key<TAB>value lines (required)")
	flags.Uint64Var(&bulkLoadCommitTS, "commit-ts", 1, "commit timestamp applied to every mutation in the batch")
	flags.IntVar(&bulkLoadMaxRanges, "max-ranges", 4, "upper bound on the number of planned ranges")
	flags.StringVar(&bulkLoadMinRangeSize, "min-range-size", "0", "minimum range size (accepts humanized sizes, e.g. 16MiB)")
	flags.StringVar(&bulkLoadSSTOutputPath, "sst-out", "", "if set, write the staged data's SST files into this directory")
	_ = bulkLoadCmd.MarkFlagRequired("path")
	_ = bulkLoadCmd.MarkFlagRequired("input")
}

func runBulkLoad(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	minRangeSize, err := humanizeutil.ParseBytes(bulkLoadMinRangeSize)
	if err != nil {
		return errors.Wrapf(err, "parsing --min-range-size %q", bulkLoadMinRangeSize)
	}

	engine, err := bulk.Open(ctx, bulkLoadEnginePath, settings.DefaultBulkEngineConfig())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := engine.Close(); cerr != nil {
			log.Errorf(ctx, "closing bulk engine: %v", cerr)
		}
	}()

	batch, err := readBatch(bulkLoadInputPath, bulkLoadCommitTS)
	if err != nil {
		return err
	}
	size, err := engine.Write(ctx, batch)
	if err != nil {
		return errors.Wrap(err, "staging write batch")
	}
	log.Infof(ctx, "staged %d mutations (%s) at commit_ts=%d", len(batch.Mutations), humanizeutil.IBytes(int64(size)), bulkLoadCommitTS)

	if err := engine.Flush(); err != nil {
		return errors.Wrap(err, "flushing bulk engine")
	}

	props, err := engine.GetSizeProperties()
	if err != nil {
		return errors.Wrap(err, "reading size properties")
	}

	ranges := bulk.ApproximateRanges(props, bulkLoadMaxRanges, uint64(minRangeSize))
	for i, r := range ranges {
		fmt.Printf("range %d: [%x, %x) ~%s\n", i, r.Start, r.End, humanizeutil.IBytes(int64(r.Size)))
	}

	if bulkLoadSSTOutputPath == "" {
		return nil
	}
	return writeSSTFiles(ctx, engine, bulkLoadSSTOutputPath)
}

func readBatch(path string, commitTS uint64) (kvpb.WriteBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return kvpb.WriteBatch{}, errors.Wrapf(kvpb.ErrIO, "opening %s: %v", path, err)
	}
	defer f.Close()

	batch := kvpb.WriteBatch{CommitTS: commitTS}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, "\t")
		if !ok {
			return kvpb.WriteBatch{}, errors.Errorf("malformed line (missing tab): %q", line)
		}
		batch.Mutations = append(batch.Mutations, kvpb.Mutation{
			Op:    kvpb.OpPut,
			Key:   []byte(k),
			Value: []byte(v),
		})
	}
	if err := scanner.Err(); err != nil {
		return kvpb.WriteBatch{}, errors.Wrap(kvpb.ErrIO, err.Error())
	}
	return batch, nil
}

func writeSSTFiles(ctx context.Context, engine *bulk.Engine, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrap(kvpb.ErrIO, err.Error())
	}

	it, err := engine.NewIter(false)
	if err != nil {
		return err
	}
	defer it.Close()

	builder := engine.NewSSTWriter()
	for it.First(); it.Valid(); it.Next() {
		key := append([]byte(nil), it.Key()...)
		value := append([]byte(nil), it.Value()...)
		if err := builder.Put(key, value); err != nil {
			return errors.Wrap(err, "staging SST entry")
		}
	}
	if err := it.Error(); err != nil {
		return errors.Wrap(kvpb.ErrIO, err.Error())
	}

	infos, err := builder.Finish()
	if err != nil {
		return errors.Wrap(err, "finishing SST builder")
	}
	for _, info := range infos {
		outPath := filepath.Join(outDir, info.CFName+".sst")
		if err := os.WriteFile(outPath, info.Bytes, 0o644); err != nil {
			return errors.Wrapf(kvpb.ErrIO, "writing %s: %v", outPath, err)
		}
		log.Infof(ctx, "wrote %s cf=%s (%s)", outPath, info.CFName, humanizeutil.IBytes(int64(len(info.Bytes))))
	}
	return nil
}
