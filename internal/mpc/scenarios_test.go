package mpc_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/kinmpc/internal/config"
	"github.com/san-kum/kinmpc/internal/mpc"
)

func scenarioConfig() *config.Config {
	cfg := config.Default()
	cfg.MaxSolveTime = 10.0
	return cfg
}

func horizonInput(n int, v0, vRef float64, curv float64) mpc.UpdateInput {
	in := mpc.UpdateInput{
		V0:      v0,
		XRef:    make([]float64, n),
		YRef:    make([]float64, n),
		PsiRef:  make([]float64, n),
		VRef:    make([]float64, n),
		CurvRef: make([]float64, n),
	}
	for k := 0; k < n; k++ {
		in.XRef[k] = 0.2 * float64(k+1) * vRef
		in.VRef[k] = vRef
		in.CurvRef[k] = curv
	}
	return in
}

var _ = Describe("receding-horizon path tracking", func() {
	Context("cruising at the target speed on a straight path", func() {
		It("holds the current command near zero", func() {
			cfg := scenarioConfig()
			cfg.VSet = 15.0
			c, err := mpc.New(cfg)
			Expect(err).NotTo(HaveOccurred())

			in := horizonInput(c.Horizon(), cfg.VSet, cfg.VSet, 0)
			Expect(c.Update(in)).To(Succeed())

			res := c.Solve()
			Expect(res.Optimal).To(BeTrue(), "status: %s", res.Status)
			Expect(math.Abs(res.UControl[0])).To(BeNumerically("<", 0.25))
			Expect(math.Abs(res.UControl[1])).To(BeNumerically("<", 0.05))

			// Nothing forces the lateral-acceleration bound, so slack stays off.
			for _, sl := range res.SlMPC {
				Expect(sl).To(BeNumerically("<", 0.05))
				Expect(sl).To(BeNumerically(">=", -1e-6))
			}
		})
	})

	Context("starting from standstill with a fast setpoint", func() {
		It("commands positive acceleration", func() {
			cfg := scenarioConfig()
			cfg.VSet = 20.0
			c, err := mpc.New(cfg)
			Expect(err).NotTo(HaveOccurred())

			in := horizonInput(c.Horizon(), 0, 20.0, 0)
			Expect(c.Update(in)).To(Succeed())

			res := c.Solve()
			Expect(res.Optimal).To(BeTrue(), "status: %s", res.Status)
			Expect(res.UControl[0]).To(BeNumerically(">", 0))

			// Predicted speed climbs toward the setpoint over the horizon.
			Expect(res.ZMPC[c.Horizon()][3]).To(BeNumerically(">", res.ZMPC[0][3]))
		})
	})

	Context("approaching a bend", func() {
		It("caps the target speed by the lateral-acceleration limit", func() {
			cfg := scenarioConfig()
			curv := make([]float64, cfg.Horizon)
			for k := range curv {
				curv[k] = 0.1
			}

			target := mpc.TargetSpeed(curv, cfg.AyMax, cfg.VSet)
			Expect(target).To(BeNumerically("~", math.Sqrt(4.0/0.1), 1e-9))
			Expect(target).To(BeNumerically("<", cfg.VSet))
		})
	})

	Context("with an infeasible lateral-offset corridor", func() {
		It("degrades to a non-optimal result with full shapes", func() {
			cfg := scenarioConfig()
			cfg.EyMin = 0.5
			cfg.EyMax = -0.5
			cfg.MaxSolveTime = 1.0
			c, err := mpc.New(cfg)
			Expect(err).NotTo(HaveOccurred(), "infeasible bounds must not block construction")

			in := horizonInput(c.Horizon(), 10, 10, 0)
			Expect(c.Update(in)).To(Succeed())

			var res mpc.SolveResult
			Expect(func() { res = c.Solve() }).NotTo(Panic())

			Expect(res.Optimal).To(BeFalse())
			Expect(res.UMPC).To(HaveLen(c.Horizon()))
			Expect(res.ZMPC).To(HaveLen(c.Horizon() + 1))
			Expect(res.SlMPC).To(HaveLen(c.Horizon()))
			Expect(res.ZRef).To(HaveLen(c.Horizon()))
			for _, row := range res.UMPC {
				Expect(row).To(HaveLen(2))
				for _, v := range row {
					Expect(math.IsNaN(v)).To(BeFalse())
				}
			}
		})
	})
})
