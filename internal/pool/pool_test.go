package pool_test

import (
	"bytes"
	"log/slog"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/shopnow-lb/internal/backend"
	"github.com/angeloszaimis/shopnow-lb/internal/pool"
)

var _ = Describe("Pool", func() {
	var (
		logBuf   *bytes.Buffer
		log      *slog.Logger
		backends []*backend.Backend
		p        *pool.Pool
	)

	BeforeEach(func() {
		logBuf = &bytes.Buffer{}
		log = slog.New(slog.NewTextHandler(logBuf, nil))
		backends = []*backend.Backend{
			backend.New("Server-1", mustParseURL("http://localhost:3001")),
			backend.New("Server-2", mustParseURL("http://localhost:3002")),
			backend.New("Server-3", mustParseURL("http://localhost:3003")),
		}

		var err error
		p, err = pool.New(log, backends)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("New", func() {
		It("should reject an empty pool", func() {
			_, err := pool.New(log, nil)
			Expect(err).To(MatchError(pool.ErrEmptyPool))
		})

		It("should reject duplicate names", func() {
			_, err := pool.New(log, []*backend.Backend{
				backend.New("dup", mustParseURL("http://localhost:3001")),
				backend.New("dup", mustParseURL("http://localhost:3002")),
			})
			Expect(err).To(MatchError(pool.ErrDuplicateName))
		})

		It("should reject empty names", func() {
			_, err := pool.New(log, []*backend.Backend{
				backend.New("", mustParseURL("http://localhost:3001")),
			})
			Expect(err).To(MatchError(pool.ErrEmptyName))
		})
	})

	Describe("ListHealthy", func() {
		It("should return every backend in order when all are healthy", func() {
			Expect(p.ListHealthy()).To(Equal(backends))
		})

		It("should filter unhealthy backends and keep order", func() {
			p.MarkHealth("Server-2", false)
			Expect(p.ListHealthy()).To(Equal([]*backend.Backend{backends[0], backends[2]}))
		})

		It("should return an empty list when nothing is healthy", func() {
			for _, b := range backends {
				p.MarkHealth(b.Name(), false)
			}
			Expect(p.ListHealthy()).To(BeEmpty())
		})
	})

	Describe("MarkHealth", func() {
		It("should report transitions", func() {
			Expect(p.MarkHealth("Server-1", false)).To(BeTrue())
			Expect(backends[0].IsHealthy()).To(BeFalse())
		})

		It("should be idempotent", func() {
			p.MarkHealth("Server-1", false)
			Expect(p.MarkHealth("Server-1", false)).To(BeFalse())
			Expect(p.MarkHealth("Server-2", true)).To(BeFalse())
		})

		It("should ignore unknown names and log a diagnostic", func() {
			Expect(p.MarkHealth("Server-9", false)).To(BeFalse())
			Expect(p.ListHealthy()).To(HaveLen(3))
			Expect(logBuf.String()).To(ContainSubstring("unknown backend"))
			Expect(logBuf.String()).To(ContainSubstring("Server-9"))
		})
	})

	Describe("Lookup helpers", func() {
		It("should find backends by name", func() {
			b, ok := p.Get("Server-3")
			Expect(ok).To(BeTrue())
			Expect(b).To(Equal(backends[2]))

			_, ok = p.Get("missing")
			Expect(ok).To(BeFalse())
		})

		It("should return a copy of all backends", func() {
			all := p.All()
			all[0] = nil
			Expect(p.All()[0]).To(Equal(backends[0]))
			Expect(p.Len()).To(Equal(3))
		})
	})
})

func mustParseURL(rawURL string) *url.URL {
	u, err := url.Parse(rawURL)
	if err != nil {
		panic(err)
	}
	return u
}
