package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/supplyhub/backend/internal/core/upload"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/transfer"
)

var (
	uploadConcurrency int
	uploadBackend     string
	uploadMaxBytes    int64
)

var errUploadsFailed = errors.New("some uploads failed")

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload files as one batch",
	Long: `Uploads the given files as one batch with the configured admission rules and
concurrency limit. Ctrl-C cancels every transfer still running.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()

		policy := cfg.Upload.Policy()
		if uploadConcurrency > 0 {
			policy.ConcurrencyLimit = uploadConcurrency
		}
		if cmd.Flags().Changed("max-bytes") {
			policy.MaxBytes = uploadMaxBytes
		}
		if uploadBackend != "" {
			cfg.Storage.Backend = uploadBackend
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client, closer, err := transfer.NewClient(ctx, cfg.Storage, log)
		if err != nil {
			return err
		}
		defer closer.Close()

		files, err := readFiles(args)
		if err != nil {
			return err
		}

		engine, err := upload.NewEngine(upload.Config{
			Client:           client,
			Admission:        upload.NewAdmission(policy),
			ConcurrencyLimit: policy.ConcurrencyLimit,
			PreviewPolicy:    domain.PreviewPolicyImmediate,
			Logger:           log,
		})
		if err != nil {
			return err
		}

		printer := &progressPrinter{
			last:     make(map[string]domain.UploadStatus),
			lastStep: make(map[string]int),
		}
		b, rejected, err := engine.Start(ctx, files, printer)
		if err != nil {
			return err
		}
		for _, r := range rejected {
			fmt.Printf("%s %s: %s\n", color.YellowString("rejected"), r.Name, r.Reason)
		}

		result, err := b.Wait(context.Background())
		if err != nil {
			return err
		}
		renderResult(result)

		if len(result.Failed) > 0 {
			return errUploadsFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().IntVarP(&uploadConcurrency, "concurrency", "n", 0, "maximum simultaneous transfers (config value when 0)")
	uploadCmd.Flags().StringVarP(&uploadBackend, "backend", "b", "", "storage backend: local, s3 or sftp")
	uploadCmd.Flags().Int64Var(&uploadMaxBytes, "max-bytes", 0, "per-file size limit in bytes, 0 for none")
}

func readFiles(paths []string) ([]domain.SourceFile, error) {
	files := make([]domain.SourceFile, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		files = append(files, domain.SourceFile{
			Name:    filepath.Base(p),
			Size:    int64(len(content)),
			Content: content,
		})
	}
	return files, nil
}

// progressPrinter prints one line per status change and per 25% of progress.
type progressPrinter struct {
	mu       sync.Mutex
	last     map[string]domain.UploadStatus
	lastStep map[string]int
}

func (p *progressPrinter) TaskChanged(v domain.TaskView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last[v.ID] != v.Status {
		p.last[v.ID] = v.Status
		fmt.Printf("%-10s %s\n", statusColor(v.Status)(string(v.Status)), v.Name)
		return
	}
	if step := v.ProgressPercent / 25; v.Status == domain.UploadStatusUploading && step > p.lastStep[v.ID] {
		p.lastStep[v.ID] = step
		fmt.Printf("%-10s %s %d%%\n", "", v.Name, v.ProgressPercent)
	}
}

func (p *progressPrinter) BatchSettled(*domain.BatchResult) {}

func statusColor(s domain.UploadStatus) func(format string, a ...interface{}) string {
	switch s {
	case domain.UploadStatusDone:
		return color.GreenString
	case domain.UploadStatusError:
		return color.RedString
	case domain.UploadStatusCanceled:
		return color.YellowString
	default:
		return color.CyanString
	}
}

func renderResult(result *domain.BatchResult) {
	if result.Total() > 0 {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Name", "Status", "Size", "Location / Error"})
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetBorder(true)

		rows := func(views []domain.TaskView, detail func(domain.TaskView) string) {
			for _, v := range views {
				table.Append([]string{v.Name, string(v.Status), strconv.FormatInt(v.Size, 10), detail(v)})
			}
		}
		rows(result.Succeeded, func(v domain.TaskView) string {
			if v.AssetURL != "" {
				return v.AssetURL
			}
			return v.AssetKey
		})
		rows(result.Failed, func(v domain.TaskView) string {
			return fmt.Sprintf("%s: %s", v.ErrorKind, v.ErrorMessage)
		})
		rows(result.Canceled, func(domain.TaskView) string { return "" })
		table.Render()
	}

	for _, n := range result.Summary().Notices() {
		if n.Level == domain.NoticeLevelSuccess {
			color.Green("%s", n.Message)
		} else {
			color.Red("%s", n.Message)
		}
	}
}
