package monitoring

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/stats"
)

type fixedSummarizer struct {
	summary stats.Summary
}

func (s fixedSummarizer) Summary() stats.Summary {
	return s.summary
}

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		server *httptest.Server
	)

	BeforeEach(func() {
		m = NewMonitor()
		server = httptest.NewServer(m.Router())
	})

	AfterEach(func() {
		server.Close()
	})

	get := func(path string) *http.Response {
		rsp, err := http.Get(server.URL + path)
		Expect(err).NotTo(HaveOccurred())
		return rsp
	}

	It("should report 404 for the summary before registration", func() {
		rsp := get("/api/summary")
		defer rsp.Body.Close()

		Expect(rsp.StatusCode).To(Equal(http.StatusNotFound))
	})

	It("should serve the registered summary", func() {
		m.RegisterSummarizer(fixedSummarizer{
			summary: stats.Summary{Hits: 3, Misses: 1, Evictions: 0},
		})

		rsp := get("/api/summary")
		defer rsp.Body.Close()

		Expect(rsp.StatusCode).To(Equal(http.StatusOK))

		var body map[string]float64
		Expect(json.NewDecoder(rsp.Body).Decode(&body)).To(Succeed())
		Expect(body["hits"]).To(BeNumerically("==", 3))
		Expect(body["misses"]).To(BeNumerically("==", 1))
		Expect(body["evictions"]).To(BeNumerically("==", 0))
		Expect(body["hit_rate"]).To(BeNumerically("~", 0.75))
	})

	It("should list progress bars until they complete", func() {
		bar := m.CreateProgressBar("trace", 100)
		bar.IncrementFinished(40)

		rsp := get("/api/progress")
		var bars []progressBarSnapshot
		Expect(json.NewDecoder(rsp.Body).Decode(&bars)).To(Succeed())
		rsp.Body.Close()

		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("trace"))
		Expect(bars[0].Total).To(Equal(uint64(100)))
		Expect(bars[0].Finished).To(Equal(uint64(40)))

		m.CompleteProgressBar(bar)

		rsp = get("/api/progress")
		bars = nil
		Expect(json.NewDecoder(rsp.Body).Decode(&bars)).To(Succeed())
		rsp.Body.Close()

		Expect(bars).To(BeEmpty())
	})

	It("should describe the registered geometry", func() {
		m.RegisterGeometry(cache.Geometry{SetBits: 4, Lines: 2, BlockBits: 4})

		rsp := get("/api/geometry")
		defer rsp.Body.Close()

		Expect(rsp.StatusCode).To(Equal(http.StatusOK))

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Valid(body)).To(BeTrue())
	})

	It("should report process resources", func() {
		rsp := get("/api/resource")
		defer rsp.Body.Close()

		Expect(rsp.StatusCode).To(Equal(http.StatusOK))

		var body resourceRsp
		Expect(json.NewDecoder(rsp.Body).Decode(&body)).To(Succeed())
		Expect(body.MemorySize).To(BeNumerically(">", 0))
	})

	It("should reject a bad profile duration", func() {
		rsp := get("/api/profile?seconds=abc")
		defer rsp.Body.Close()

		Expect(rsp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	DescribeTable("listen address",
		func(port int, address string) {
			Expect(m.WithPortNumber(port).listenAddress()).To(Equal(address))
		},
		Entry("random port", 0, ":0"),
		Entry("port below the bound", 999, ":0"),
		Entry("port at the bound", 1000, ":1000"),
		Entry("regular port", 8080, ":8080"),
	)

	It("should start and stop a server", func() {
		url, err := m.WithPortNumber(0).StartServer()
		Expect(err).NotTo(HaveOccurred())
		Expect(url).To(HavePrefix("http://localhost:"))

		Expect(m.StopServer()).To(Succeed())
		Expect(m.StopServer()).To(Succeed())
	})
})

var _ = Describe("ProgressBar", func() {
	It("should move in-progress items to finished", func() {
		bar := &ProgressBar{Total: 10}

		bar.IncrementInProgress(4)
		bar.MoveInProgressToFinished(3)

		snap := bar.snapshot()
		Expect(snap.InProgress).To(Equal(uint64(1)))
		Expect(snap.Finished).To(Equal(uint64(3)))
	})
})
