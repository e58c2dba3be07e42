package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/portfolio-core/internal/blobstore"
	"github.com/naka-gawa/portfolio-core/internal/domain"
	"github.com/naka-gawa/portfolio-core/internal/usecase"
)

const handleNamespace = "portfolio-core"

type savedReport struct {
	ID       int64  `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	MimeType string `json:"mime_type" yaml:"mime_type"`
	Size     int    `json:"size" yaml:"size"`
}

var blobsCmd = &cobra.Command{
	Use:   "blobs",
	Short: "Stores and lists binary attachments in the local database",
}

var blobsSaveCmd = &cobra.Command{
	Use:   "save <file>",
	Short: "Saves a file as a new record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = filepath.Base(args[0])
		}
		mimeType, _ := cmd.Flags().GetString("type")
		if mimeType == "" {
			mimeType = mimetype.Detect(data).String()
			logger.Debug("detected MIME type", "file", args[0], "mime_type", mimeType)
		}

		lib, closeLib, err := openLibrary(cmd)
		if err != nil {
			return err
		}
		defer closeLib()

		id, err := lib.Save(cmd.Context(), name, mimeType, data)
		if err != nil {
			return err
		}
		return writeOutput(cmd, savedReport{ID: id, Name: name, MimeType: mimeType, Size: len(data)})
	},
}

var blobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists every stored record",
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, closeLib, err := openLibrary(cmd)
		if err != nil {
			return err
		}
		defer closeLib()

		views, err := lib.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		return writeOutput(cmd, views)
	},
}

var blobsExportCmd = &cobra.Command{
	Use:   "export <id> <dest>",
	Short: "Writes the bytes of a renderable record (image or PDF) to dest",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid record id %q: %w", args[0], err)
		}

		lib, closeLib, err := openLibrary(cmd)
		if err != nil {
			return err
		}
		defer closeLib()

		views, err := lib.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		view, ok := findView(views, id)
		if !ok {
			return fmt.Errorf("record %d not found", id)
		}

		_, data, ok := lib.Resolve(view.Handle)
		if !ok {
			return fmt.Errorf("record %d (%s) has no view handle", id, view.MimeType)
		}
		if err := os.WriteFile(args[1], data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", args[1], err)
		}
		logger.Info("record exported", "id", id, "dest", args[1], "size", len(data))
		return nil
	},
}

// openLibrary opens the store at the configured path and returns a Library over it.
// The returned func revokes every handle and closes the store.
func openLibrary(cmd *cobra.Command) (*usecase.Library, func(), error) {
	path := cfg.DBPath
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		path = p
	}

	store, err := blobstore.Open(cmd.Context(), path)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("store opened", "path", path, "schema_version", blobstore.SchemaVersion)

	lib := usecase.NewLibrary(store, blobstore.NewHandles(handleNamespace), logger)
	return lib, func() {
		lib.Release()
		if err := store.Close(); err != nil {
			logger.Warn("closing store failed", "error", err)
		}
	}, nil
}

func findView(views []domain.RecordView, id int64) (domain.RecordView, bool) {
	for _, v := range views {
		if v.ID == id {
			return v, true
		}
	}
	return domain.RecordView{}, false
}

func init() {
	rootCmd.AddCommand(blobsCmd)
	blobsCmd.AddCommand(blobsSaveCmd, blobsListCmd, blobsExportCmd)
	blobsCmd.PersistentFlags().String("db", "", "Path to the SQLite database (defaults to PORTFOLIO_DB_PATH)")
	blobsSaveCmd.Flags().String("name", "", "Record name (defaults to the file's base name)")
	blobsSaveCmd.Flags().String("type", "", "MIME type (detected from the content when empty)")
}
