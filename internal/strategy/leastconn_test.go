package strategy_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/shopnow-lb/internal/backend"
	"github.com/angeloszaimis/shopnow-lb/internal/strategy"
)

var _ = Describe("LeastConnections", func() {
	var (
		strat    *strategy.LeastConnections
		backends []*backend.Backend
	)

	BeforeEach(func() {
		backends = newBackends(3)
		strat = strategy.NewLeastConnStrategy(backends)
	})

	Describe("Next", func() {
		It("should select backend with fewest connections", func() {
			strat.IncrementConnections("Server-1")
			strat.IncrementConnections("Server-1")
			strat.IncrementConnections("Server-2")

			Expect(strat.Next()).To(Equal(backends[2]))
		})

		It("should break ties by list order", func() {
			Expect(strat.Next()).To(Equal(backends[0]))

			strat.IncrementConnections("Server-1")
			Expect(strat.Next()).To(Equal(backends[1]))

			strat.IncrementConnections("Server-2")
			strat.IncrementConnections("Server-3")
			Expect(strat.Next()).To(Equal(backends[0]))
		})

		It("should never return a backend with more connections than another", func() {
			loads := [][]int{{0, 0, 0}, {3, 1, 2}, {1, 1, 0}, {5, 5, 5}, {2, 0, 0}}
			for _, load := range loads {
				s := strategy.NewLeastConnStrategy(backends)
				for i, n := range load {
					for j := 0; j < n; j++ {
						s.IncrementConnections(backends[i].Name())
					}
				}

				chosen := s.Next()
				for _, b := range backends {
					Expect(s.Connections(chosen.Name())).To(BeNumerically("<=", s.Connections(b.Name())))
				}
			}
		})

		It("should return nil without healthy servers", func() {
			strat.UpdateServers(nil)
			Expect(strat.Next()).To(BeNil())
		})
	})

	Describe("DecrementConnections", func() {
		It("should never go below zero", func() {
			strat.DecrementConnections("Server-1")
			strat.DecrementConnections("Server-1")
			Expect(strat.Connections("Server-1")).To(Equal(0))

			strat.IncrementConnections("Server-1")
			strat.DecrementConnections("Server-1")
			strat.DecrementConnections("Server-1")
			Expect(strat.Connections("Server-1")).To(Equal(0))
		})
	})

	Describe("UpdateServers", func() {
		It("should keep counters of servers that left the list", func() {
			strat.IncrementConnections("Server-2")
			strat.IncrementConnections("Server-2")

			strat.UpdateServers([]*backend.Backend{backends[0], backends[2]})
			Expect(strat.Connections("Server-2")).To(Equal(2))

			strat.UpdateServers(backends)
			Expect(strat.Connections("Server-2")).To(Equal(2))
			Expect(strat.Info().ActiveConnections).To(HaveKeyWithValue("Server-2", 2))
		})

		It("should only select from the current list", func() {
			strat.IncrementConnections("Server-1")
			strat.UpdateServers([]*backend.Backend{backends[0]})
			Expect(strat.Next()).To(Equal(backends[0]))
		})
	})

	Describe("Reset", func() {
		It("should zero every counter", func() {
			strat.IncrementConnections("Server-1")
			strat.IncrementConnections("Server-3")
			strat.Reset()
			Expect(*strat.Info().TotalActiveConnections).To(Equal(0))
		})
	})

	Describe("Info", func() {
		It("should report per-server and total counts", func() {
			strat.IncrementConnections("Server-1")
			strat.IncrementConnections("Server-3")
			strat.IncrementConnections("Server-3")

			info := strat.Info()
			Expect(info.Algorithm).To(Equal("Least Connections"))
			Expect(info.TotalServers).To(Equal(3))
			Expect(info.ActiveConnections).To(Equal(map[string]int{"Server-1": 1, "Server-2": 0, "Server-3": 2}))
			Expect(*info.TotalActiveConnections).To(Equal(3))
			Expect(info.CurrentIndex).To(BeNil())
		})
	})
})
