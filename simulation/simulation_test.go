package simulation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/stats"
	"github.com/sarchlab/cachesim/tracing"
)

var _ = Describe("Simulation", func() {
	build := func(b Builder) *Simulation {
		s, err := b.Build()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(s.Terminate)

		return s
	}

	It("should map neighbouring addresses to different sets", func() {
		s := build(MakeBuilder().
			WithGeometry(cache.Geometry{SetBits: 1, Lines: 1, BlockBits: 0}))

		summary, err := s.RunReader(strings.NewReader("L 0,1\nL 1,1\nL 0,1\n"))

		Expect(err).NotTo(HaveOccurred())
		Expect(summary).To(Equal(stats.Summary{Hits: 1, Misses: 2}))
	})

	It("should evict conflicting tags in a single set", func() {
		verbose := new(bytes.Buffer)
		s := build(MakeBuilder().
			WithGeometry(cache.Geometry{SetBits: 0, Lines: 1, BlockBits: 0}).
			WithVerboseOutput(verbose))

		summary, err := s.RunReader(strings.NewReader("L 0,1\nL 8,1\nL 0,1\n"))

		Expect(err).NotTo(HaveOccurred())
		Expect(summary).To(Equal(stats.Summary{Misses: 3, Evictions: 2}))
		Expect(verbose.String()).To(Equal(
			"L 0,1 miss\nL 8,1 miss eviction\nL 0,1 miss eviction\n"))
	})

	It("should reject an invalid geometry", func() {
		_, err := MakeBuilder().
			WithGeometry(cache.Geometry{SetBits: 0, Lines: 0, BlockBits: 0}).
			Build()

		Expect(err).To(MatchError(cache.ErrInvalidGeometry))
	})

	It("should panic if a monitor port is given without monitoring", func() {
		Expect(func() { _, _ = MakeBuilder().WithMonitorPort(8080).Build() }).
			To(Panic())
	})

	It("should keep sessions isolated", func() {
		g := cache.Geometry{SetBits: 0, Lines: 1, BlockBits: 0}
		s1 := build(MakeBuilder().WithGeometry(g))
		s2 := build(MakeBuilder().WithGeometry(g))

		_, err := s1.RunReader(strings.NewReader("L 0,1\nL 0,1\n"))
		Expect(err).NotTo(HaveOccurred())

		summary, err := s2.RunReader(strings.NewReader("L 0,1\n"))
		Expect(err).NotTo(HaveOccurred())

		Expect(s1.ID()).NotTo(Equal(s2.ID()))
		Expect(s1.Aggregator().Summary()).To(Equal(stats.Summary{Hits: 1, Misses: 1}))
		Expect(summary).To(Equal(stats.Summary{Misses: 1}))
	})

	It("should run a trace file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "t.trace")
		Expect(os.WriteFile(path, []byte(" L 10,1\n M 20,1\n"), 0o644)).To(Succeed())

		s := build(MakeBuilder().
			WithGeometry(cache.Geometry{SetBits: 4, Lines: 1, BlockBits: 4}))

		summary, err := s.RunTraceFile(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(summary).To(Equal(stats.Summary{Hits: 1, Misses: 2}))
	})

	It("should fail on a missing trace file", func() {
		s := build(MakeBuilder())

		_, err := s.RunTraceFile(filepath.Join(GinkgoT().TempDir(), "missing"))

		Expect(err).To(HaveOccurred())
	})

	It("should record accesses and the run summary", func() {
		dbPath := filepath.Join(GinkgoT().TempDir(), "run")
		g := cache.Geometry{SetBits: 0, Lines: 1, BlockBits: 0}
		s := build(MakeBuilder().WithGeometry(g).WithRecording(dbPath))

		_, err := s.RunReader(strings.NewReader("L 0,1\nL 8,1\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Terminate()).To(Succeed())

		reader, err := datarecording.NewReader(dbPath + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		reader.MapTable(tracing.AccessTable, tracing.AccessEntry{})
		reader.MapTable(tracing.RunSummaryTable, tracing.RunSummaryEntry{})

		accesses, total, err := reader.Query(context.Background(),
			tracing.AccessTable, datarecording.QueryParams{OrderBy: "Seq"})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(2))
		Expect(accesses[1].(tracing.AccessEntry).Outcome).To(Equal("miss eviction"))

		runs, _, err := reader.Query(context.Background(),
			tracing.RunSummaryTable, datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(1))

		run := runs[0].(tracing.RunSummaryEntry)
		Expect(run.ID).To(Equal(s.ID()))
		Expect(run.Misses).To(Equal(int64(2)))
		Expect(run.Evictions).To(Equal(int64(1)))
	})

	It("should serve the summary while monitoring", func() {
		s := build(MakeBuilder().WithMonitoring())

		_, err := s.RunReader(strings.NewReader("L 0,1\nL 0,1\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.MonitorURL()).NotTo(BeEmpty())

		rsp, err := http.Get(s.MonitorURL() + "/api/summary")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		var body map[string]float64
		Expect(json.NewDecoder(rsp.Body).Decode(&body)).To(Succeed())
		Expect(body["hits"]).To(BeNumerically("==", 1))
		Expect(body["misses"]).To(BeNumerically("==", 1))
	})
})
