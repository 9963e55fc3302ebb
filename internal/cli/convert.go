package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/depthscale/internal/atmos"
	"github.com/star/depthscale/internal/depth"
	"github.com/star/depthscale/internal/eos"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

type convertOpts struct {
	wavelength float64
	format     string
	abundances string
}

func (c *CLI) convertCommand() *cobra.Command {
	opts := convertOpts{wavelength: eos.DefaultWavelength, format: formatTable}

	cmd := &cobra.Command{
		Use:   "convert <model-file>",
		Short: "Convert a model atmosphere to height and column mass",
		Long: `Convert reads a model atmosphere table (log tau, T [K], ne [cm^-3] per row,
'#' comments) and prints geometric height and column mass for every depth point.
Height is zero where the reference optical depth is one and grows outward.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConvert(cmd, args[0], opts)
		},
	}

	cmd.Flags().Float64VarP(&opts.wavelength, "wavelength", "w", opts.wavelength, "reference wavelength in Å")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: table or json")
	cmd.Flags().StringVar(&opts.abundances, "abundances", "", "TOML file with [abundances] overrides")

	return cmd
}

func (c *CLI) runConvert(cmd *cobra.Command, path string, opts convertOpts) error {
	if opts.format != formatTable && opts.format != formatJSON {
		return fmt.Errorf("unknown format %q (want %s or %s)", opts.format, formatTable, formatJSON)
	}
	if !(opts.wavelength > 0) {
		return fmt.Errorf("wavelength must be positive, got %g", opts.wavelength)
	}

	state, err := c.newEOS(opts.abundances)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	m, err := atmos.Parse(f, c.slogger())
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	start := time.Now()
	conv := depth.NewConverter(state,
		depth.WithReferenceWavelength(opts.wavelength),
		depth.WithLogger(c.slogger()),
	)
	res, err := conv.Convert(m.Stratification())
	if err != nil {
		return fmt.Errorf("%s: %w", m.Name, err)
	}
	c.Logger.Info("converted model", "model", m.Name, "points", m.Len(),
		"elapsed", time.Since(start).Round(time.Microsecond))

	out := cmd.OutOrStdout()
	if opts.format == formatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(jsonResult{
			Name:           m.Name,
			Wavelength:     res.Wavelength,
			TauUnityHeight: res.TauUnityHeight,
			LogTau:         m.LogTau,
			Height:         res.Height,
			ColumnMass:     res.ColumnMass,
		})
	}
	return atmos.WriteTable(out, m, res)
}

type jsonResult struct {
	Name           string    `json:"name"`
	Wavelength     float64   `json:"wavelength"`
	TauUnityHeight float64   `json:"tau_unity_height"`
	LogTau         []float64 `json:"logtau"`
	Height         []float64 `json:"height"`
	ColumnMass     []float64 `json:"cmass"`
}
