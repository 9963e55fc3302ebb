package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/star/depthscale/internal/eos"
)

type eosOpts struct {
	temperature float64
	pe          float64
	pgas        float64
	wavelength  float64
	abundances  string
}

func (c *CLI) eosCommand() *cobra.Command {
	opts := eosOpts{wavelength: eos.DefaultWavelength}

	cmd := &cobra.Command{
		Use:   "eos",
		Short: "Print the equation-of-state solution at one point",
		Long: `Eos solves the LTE equation of state at the given temperature and electron
pressure and prints the particle densities, gas pressure, mass density and
continuum opacity. Give --pgas instead of --pe to solve for the electron
pressure first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runEOS(cmd, opts)
		},
	}

	cmd.Flags().Float64VarP(&opts.temperature, "temperature", "t", 0, "temperature in K")
	cmd.Flags().Float64Var(&opts.pe, "pe", 0, "electron pressure in dyn/cm²")
	cmd.Flags().Float64Var(&opts.pgas, "pgas", 0, "gas pressure in dyn/cm²")
	cmd.Flags().Float64VarP(&opts.wavelength, "wavelength", "w", opts.wavelength, "opacity wavelength in Å")
	cmd.Flags().StringVar(&opts.abundances, "abundances", "", "TOML file with [abundances] overrides")
	cmd.MarkFlagRequired("temperature")
	cmd.MarkFlagsMutuallyExclusive("pe", "pgas")
	cmd.MarkFlagsOneRequired("pe", "pgas")

	return cmd
}

func (c *CLI) runEOS(cmd *cobra.Command, opts eosOpts) error {
	state, err := c.newEOS(opts.abundances)
	if err != nil {
		return err
	}

	pe := opts.pe
	if cmd.Flags().Changed("pgas") {
		pe, err = state.ElectronPressure(opts.temperature, opts.pgas)
		if err != nil {
			return err
		}
		c.Logger.Debug("electron pressure solved", "pgas", opts.pgas, "pe", pe)
	}

	s, err := state.Solve(opts.temperature, pe)
	if err != nil {
		return err
	}
	chi, err := state.ContinuumOpacity(s.T, s.Pgas, s.Pe, opts.wavelength)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	rows := []struct {
		label string
		value float64
		unit  string
	}{
		{"T", s.T, "K"},
		{"Pe", s.Pe, "dyn/cm²"},
		{"Pgas", s.Pgas, "dyn/cm²"},
		{"rho", s.Rho, "g/cm³"},
		{"n(H)", s.NH, "cm⁻³"},
		{"n(HI)", s.NHI, "cm⁻³"},
		{"n(HII)", s.NHII, "cm⁻³"},
		{"n(H-)", s.NHm, "cm⁻³"},
		{"n(H2)", s.NH2, "cm⁻³"},
		{"n(metals)", s.NMetal, "cm⁻³"},
		{"ne", s.Ne, "cm⁻³"},
		{fmt.Sprintf("chi(%gÅ)", opts.wavelength), chi, "cm⁻¹"},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%.6e\t%s\n", r.label, r.value, r.unit)
	}
	return tw.Flush()
}
