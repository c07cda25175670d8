package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/coursegest/internal/convert"
)

var (
	convertInput    string
	convertOutput   string
	convertWorkers  int
	convertOCR      bool
	convertTextOnly bool
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert PDFs and documents to HTML",
	Long: `Converts every PDF, Markdown, DOCX, text, CSV and HTML file under the input
path into one HTML file each. PDFs go through an extraction cascade
(pdftotext, mutool, the in-process reader, positional XML, optional OCR)
and fall back to page images unless --text-only is set.

pdftotext and pdftohtml must be on PATH when PDFs are converted.`,
	Args: cobra.NoArgs,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertInput, "input", "i", "", "input file or directory")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "output directory for HTML files")
	convertCmd.Flags().IntVarP(&convertWorkers, "workers", "w", 0, "parallel conversions (default $CONVERT_WORKERS or max(4, CPUs/2))")
	convertCmd.Flags().BoolVar(&convertOCR, "ocr", false, "enable the OCR step (also $ENABLE_OCR)")
	convertCmd.Flags().BoolVar(&convertTextOnly, "text-only", false, "never fall back to page images")
	_ = convertCmd.MarkFlagRequired("input")
	_ = convertCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)

	files, err := convert.Collect(convertInput)
	if err != nil {
		return err
	}

	tools := convert.NewTools()
	if hasPDF(files) {
		if err := tools.RequireHard(); err != nil {
			return err
		}
	}
	if missing := tools.Missing(convert.SoftTools...); len(missing) > 0 {
		logger.Warn("optional tools missing, their steps will be skipped", "tools", strings.Join(missing, ","))
	}

	workers := convertWorkers
	if workers <= 0 {
		workers = cfg.ConvertWorkers
	}
	opts := convert.DefaultOptions()
	opts.EnableOCR = convertOCR || cfg.EnableOCR
	opts.TextOnly = convertTextOnly
	opts.Thresholds = convert.Thresholds{Text: cfg.LowYieldText, XML: cfg.LowYieldXML, OCR: cfg.LowYieldOCR}
	opts.LineTolerance = cfg.LineTolerance
	opts.ParagraphTolerance = cfg.ParagraphTolerance

	cascade := convert.NewPDFCascade(tools, opts, logger)
	conv := convert.NewConverter(tools, cascade, convertOutput, workers, logger)

	logger.Info("converting", "files", len(files), "workers", workers, "ocr", opts.EnableOCR, "text_only", opts.TextOnly)
	results, err := conv.ConvertAll(ctx, files)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	convert.Report(cmd.OutOrStdout(), results, convertOutput)
	return nil
}

func hasPDF(files []string) bool {
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ".pdf") {
			return true
		}
	}
	return false
}
