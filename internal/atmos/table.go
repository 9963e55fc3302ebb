package atmos

import (
	"bufio"
	"fmt"
	"io"

	"github.com/star/depthscale/internal/depth"
)

// WriteTable writes the converted stratification as a fixed-width table.
// Height is written in km.
func WriteTable(w io.Writer, m *Model, res *depth.Result) error {
	if len(res.Height) != m.Len() {
		return fmt.Errorf("result has %d points, model has %d", len(res.Height), m.Len())
	}

	bw := bufio.NewWriter(w)
	if m.Name != "" {
		fmt.Fprintf(bw, "# %s %s\n", nameDirective, m.Name)
	}
	fmt.Fprintf(bw, "# reference wavelength %.1f A, tau=1 offset %.6e cm\n", res.Wavelength, res.TauUnityHeight)
	fmt.Fprintf(bw, "# %10s %12s %14s %12s %14s %14s %14s %14s\n",
		"logtau", "height[km]", "cmass[g/cm2]", "T[K]", "ne[cm^-3]", "pgas[dyn]", "rho[g/cm3]", "chi[cm^-1]")
	for k := range res.Height {
		fmt.Fprintf(bw, "%12.5f %12.4f %14.6e %12.3f %14.6e %14.6e %14.6e %14.6e\n",
			m.LogTau[k], res.Height[k]/1e5, res.ColumnMass[k],
			m.Temperature[k], m.Ne[k], res.Pgas[k], res.Rho[k], res.ChiC[k])
	}
	return bw.Flush()
}
