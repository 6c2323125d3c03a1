package coordinator_test

import (
	"context"
	"errors"
	"time"

	"github.com/lisanmuaddib/trendscout/pkg/coordinator"
	"github.com/lisanmuaddib/trendscout/pkg/profiles"
	"github.com/sirupsen/logrus"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func trendingSet() []profiles.Profile {
	return []profiles.Profile{
		{ID: "u1", Username: "alpha", FollowerCount: 500, TotalLikes: 100},
		{ID: "u2", Username: "beta", FollowerCount: 2000, TotalLikes: 400},
		{ID: "u3", Username: "gamma", FollowerCount: 1000, TotalLikes: 200},
	}
}

var _ = Describe("Coordinator", func() {
	var (
		source    *fakeSource
		publisher *fakePublisher
		st        *fakeStore
		notifier  *fakeNotifier
	)

	BeforeEach(func() {
		source = &fakeSource{records: trendingSet()}
		publisher = &fakePublisher{}
		st = newFakeStore()
		notifier = &fakeNotifier{}
	})

	newCoordinator := func(filter profiles.FilterConfig) *coordinator.Coordinator {
		coord, err := coordinator.New(coordinator.Config{
			Source:    source,
			Publisher: publisher,
			Store:     st,
			Notifier:  notifier,
			Logger:    testLogger(),
			Filter:    filter,
		})
		Expect(err).NotTo(HaveOccurred())
		return coord
	}

	Describe("a clean run", func() {
		It("announces every matched profile in follower order", func() {
			coord := newCoordinator(profiles.FilterConfig{})

			Expect(coord.Trigger(context.Background())).To(BeTrue())

			Expect(publisher.postedIDs()).To(Equal([]string{"u2", "u3", "u1"}))
			Expect(st.ledgerEntries()).To(HaveLen(3))
			Expect(st.ledgerEntries()[0].ProfileID).To(Equal("u2"))
			Expect(st.ledgerEntries()[0].Username).To(Equal("beta"))
		})

		It("walks the phases in order and returns to idle", func() {
			coord := newCoordinator(profiles.FilterConfig{})

			coord.Trigger(context.Background())

			phases := st.savedPhases()
			Expect(phases[0]).To(Equal(string(coordinator.PhaseInitializing)))
			Expect(phases[1]).To(Equal(string(coordinator.PhaseScraping)))
			Expect(phases[2]).To(Equal(string(coordinator.PhaseProcessing)))
			Expect(phases[3]).To(Equal(string(coordinator.PhasePosting)))
			Expect(phases).To(ContainElement(string(coordinator.PhaseFinalizing)))
			Expect(phases[len(phases)-1]).To(Equal(string(coordinator.PhaseIdle)))

			last := st.savedStates()[len(st.savedStates())-1]
			Expect(last.IsRunning).To(BeFalse())
			Expect(last.Progress).To(BeZero())
			Expect(last.LastError).To(BeEmpty())
		})

		It("records statistics with a success timestamp", func() {
			coord := newCoordinator(profiles.FilterConfig{})

			coord.Trigger(context.Background())

			deltas := st.statDeltas()
			Expect(deltas).To(HaveLen(1))
			Expect(deltas[0].Scraped).To(Equal(int64(3)))
			Expect(deltas[0].Posted).To(Equal(int64(3)))
			Expect(deltas[0].Errors).To(BeZero())
			Expect(deltas[0].LastRun).NotTo(BeNil())
			Expect(deltas[0].LastSuccess).NotTo(BeNil())
		})

		It("records a completed run with the announced ids", func() {
			coord := newCoordinator(profiles.FilterConfig{})

			coord.Trigger(context.Background())

			runs := st.recordedRuns()
			Expect(runs).To(HaveLen(1))
			Expect(runs[0].ID).NotTo(BeEmpty())
			Expect(runs[0].Status).To(Equal("completed"))
			Expect(runs[0].Scraped).To(Equal(3))
			Expect(runs[0].Posted).To(Equal(3))
			Expect([]string(runs[0].PostedIDs)).To(Equal([]string{"u2", "u3", "u1"}))
		})

		It("sends a success notification", func() {
			coord := newCoordinator(profiles.FilterConfig{})

			coord.Trigger(context.Background())

			notes := notifier.delivered()
			Expect(notes).To(HaveLen(1))
			Expect(notes[0].Severity).To(Equal(coordinator.SeveritySuccess))
			Expect(notes[0].Message).To(ContainSubstring("3 announced"))
		})
	})

	Describe("per-profile publish failures", func() {
		BeforeEach(func() {
			publisher.failIDs = map[string]error{"u3": errors.New("channel rejected message")}
		})

		It("continues with the remaining profiles", func() {
			coord := newCoordinator(profiles.FilterConfig{})

			Expect(coord.Trigger(context.Background())).To(BeTrue())

			Expect(publisher.postedIDs()).To(Equal([]string{"u2", "u1"}))
			Expect(st.ledgerEntries()).To(HaveLen(2))
		})

		It("counts the failure without failing the run", func() {
			coord := newCoordinator(profiles.FilterConfig{})

			coord.Trigger(context.Background())

			runs := st.recordedRuns()
			Expect(runs[0].Status).To(Equal("completed"))
			Expect(runs[0].Posted).To(Equal(2))
			Expect(runs[0].Errors).To(Equal(1))

			deltas := st.statDeltas()
			Expect(deltas[0].Errors).To(Equal(int64(1)))
			Expect(deltas[0].LastSuccess).NotTo(BeNil())
		})

		It("downgrades the notification to a warning", func() {
			coord := newCoordinator(profiles.FilterConfig{})

			coord.Trigger(context.Background())

			notes := notifier.delivered()
			Expect(notes).To(HaveLen(1))
			Expect(notes[0].Severity).To(Equal(coordinator.SeverityWarning))
			Expect(notes[0].Message).To(ContainSubstring("1 failed"))
		})
	})

	Describe("a run with nothing to announce", func() {
		BeforeEach(func() {
			source.records = nil
		})

		It("completes through finalizing with an info notification", func() {
			coord := newCoordinator(profiles.FilterConfig{})

			Expect(coord.Trigger(context.Background())).To(BeTrue())

			Expect(st.savedPhases()).To(ContainElement(string(coordinator.PhaseFinalizing)))
			Expect(publisher.postedIDs()).To(BeEmpty())

			notes := notifier.delivered()
			Expect(notes).To(HaveLen(1))
			Expect(notes[0].Severity).To(Equal(coordinator.SeverityInfo))

			deltas := st.statDeltas()
			Expect(deltas[0].LastSuccess).NotTo(BeNil())
		})
	})

	Describe("a fatal fetch failure", func() {
		BeforeEach(func() {
			source.err = errors.New("trending feed unavailable")
		})

		It("aborts the run and persists the error phase", func() {
			coord := newCoordinator(profiles.FilterConfig{})

			Expect(coord.Trigger(context.Background())).To(BeTrue())

			phases := st.savedPhases()
			Expect(phases).To(ContainElement(string(coordinator.PhaseError)))
			Expect(phases).NotTo(ContainElement(string(coordinator.PhaseProcessing)))
			Expect(phases[len(phases)-1]).To(Equal(string(coordinator.PhaseIdle)))

			last := st.savedStates()[len(st.savedStates())-1]
			Expect(last.LastError).To(ContainSubstring("trending feed unavailable"))
		})

		It("records a failed run and an error notification", func() {
			coord := newCoordinator(profiles.FilterConfig{})

			coord.Trigger(context.Background())

			runs := st.recordedRuns()
			Expect(runs).To(HaveLen(1))
			Expect(runs[0].Status).To(Equal("failed"))
			Expect(runs[0].Error).To(ContainSubstring("trending feed unavailable"))
			Expect(runs[0].Errors).To(Equal(1))

			notes := notifier.delivered()
			Expect(notes).To(HaveLen(1))
			Expect(notes[0].Severity).To(Equal(coordinator.SeverityError))
		})

		It("releases the guard so a later trigger can run", func() {
			coord := newCoordinator(profiles.FilterConfig{})

			coord.Trigger(context.Background())

			Expect(coord.IsRunning()).To(BeFalse())
			Expect(coord.Trigger(context.Background())).To(BeTrue())
			Expect(source.fetchCount()).To(Equal(2))
		})
	})

	Describe("the single-flight guard", func() {
		It("drops a trigger received while a run is active", func() {
			source.blockCh = make(chan struct{})
			coord := newCoordinator(profiles.FilterConfig{})

			started := make(chan bool, 1)
			go func() {
				started <- coord.Trigger(context.Background())
			}()

			Eventually(coord.IsRunning).Should(BeTrue())
			Expect(coord.Trigger(context.Background())).To(BeFalse())
			Expect(source.fetchCount()).To(Equal(1))

			close(source.blockCh)
			Eventually(started).Should(Receive(BeTrue()))
			Eventually(coord.IsRunning).Should(BeFalse())
		})
	})

	Describe("ledger exclusion", func() {
		It("skips profiles already announced", func() {
			st.ledgerIDs = []string{"u2"}
			coord := newCoordinator(profiles.FilterConfig{ExcludePosted: true})

			coord.Trigger(context.Background())

			Expect(publisher.postedIDs()).To(Equal([]string{"u3", "u1"}))
		})
	})

	Describe("settings overrides", func() {
		It("layers stored thresholds over the configured defaults", func() {
			st.settings[coordinator.SettingMinFollowers] = "1000"
			coord := newCoordinator(profiles.FilterConfig{})

			coord.Trigger(context.Background())

			Expect(publisher.postedIDs()).To(Equal([]string{"u2", "u3"}))
		})

		It("ignores a malformed setting value", func() {
			st.settings[coordinator.SettingMinFollowers] = "lots"
			coord := newCoordinator(profiles.FilterConfig{})

			coord.Trigger(context.Background())

			Expect(publisher.postedIDs()).To(HaveLen(3))
		})
	})

	Describe("store failures", func() {
		It("fails the run when run state cannot be persisted", func() {
			st.saveStateErr = errors.New("db gone")
			coord := newCoordinator(profiles.FilterConfig{})

			Expect(coord.Trigger(context.Background())).To(BeTrue())

			Expect(source.fetchCount()).To(BeZero())
			runs := st.recordedRuns()
			Expect(runs[0].Status).To(Equal("failed"))
		})

		It("fails the run when a ledger append fails", func() {
			st.ledgerErr = errors.New("db gone")
			coord := newCoordinator(profiles.FilterConfig{})

			coord.Trigger(context.Background())

			Expect(publisher.postedIDs()).To(Equal([]string{"u2"}))
			runs := st.recordedRuns()
			Expect(runs[0].Status).To(Equal("failed"))
			Expect(runs[0].Error).To(ContainSubstring("append ledger"))
		})
	})
})

var _ = Describe("NewScheduler", func() {
	It("requires a coordinator", func() {
		_, err := coordinator.NewScheduler(nil, time.Hour, testLogger())
		Expect(err).To(HaveOccurred())
	})

	It("rejects an interval below the minimum", func() {
		coord, err := coordinator.New(coordinator.Config{
			Source:    &fakeSource{},
			Publisher: &fakePublisher{},
			Store:     newFakeStore(),
			Logger:    testLogger(),
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = coordinator.NewScheduler(coord, time.Second, testLogger())
		Expect(err).To(HaveOccurred())

		_, err = coordinator.NewScheduler(coord, coordinator.MinScanInterval, testLogger())
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("New", func() {
	It("requires a source", func() {
		_, err := coordinator.New(coordinator.Config{
			Publisher: &fakePublisher{},
			Store:     newFakeStore(),
			Logger:    testLogger(),
		})
		Expect(err).To(HaveOccurred())
	})

	It("requires a publisher", func() {
		_, err := coordinator.New(coordinator.Config{
			Source: &fakeSource{},
			Store:  newFakeStore(),
			Logger: testLogger(),
		})
		Expect(err).To(HaveOccurred())
	})

	It("requires a store", func() {
		_, err := coordinator.New(coordinator.Config{
			Source:    &fakeSource{},
			Publisher: &fakePublisher{},
			Logger:    testLogger(),
		})
		Expect(err).To(HaveOccurred())
	})

	It("rejects an invalid filter config", func() {
		_, err := coordinator.New(coordinator.Config{
			Source:    &fakeSource{},
			Publisher: &fakePublisher{},
			Store:     newFakeStore(),
			Logger:    testLogger(),
			Filter:    profiles.FilterConfig{MinFollowers: -1},
		})
		Expect(err).To(HaveOccurred())
	})
})
