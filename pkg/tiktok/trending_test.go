package tiktok_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/lisanmuaddib/trendscout/pkg/retry"
	"github.com/lisanmuaddib/trendscout/pkg/tiktok"
	"github.com/sirupsen/logrus"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestClient(server *httptest.Server, batchSize int) *tiktok.Client {
	config := &tiktok.Config{
		MSToken:          "test-token",
		BaseURL:          server.URL,
		TrendingEndpoint: "/recommend/item_list/",
		BatchSize:        batchSize,
		UserAgent:        "trendscout-test",
		Logger:           testLogger(),
	}

	client, err := tiktok.NewClient(config, retry.Config{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
	})
	Expect(err).NotTo(HaveOccurred())
	return client
}

func authorItem(videoID, authorID, username string, followers, hearts int64) string {
	return fmt.Sprintf(`{
		"id": %q,
		"author": {
			"id": %q,
			"uniqueId": %q,
			"nickname": "Nick",
			"signature": "bio text",
			"verified": false,
			"avatarLarger": "https://cdn.example/%s.jpg"
		},
		"authorStats": {
			"followerCount": %d,
			"followingCount": 10,
			"heartCount": %d,
			"videoCount": 42
		}
	}`, videoID, authorID, username, authorID, followers, hearts)
}

var _ = Describe("FetchTrending", func() {
	It("paginates and deduplicates authors by id", func() {
		var sawToken atomic.Bool

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("msToken") == "test-token" {
				sawToken.Store(true)
			}

			cursor := r.URL.Query().Get("cursor")
			w.Header().Set("Content-Type", "application/json")

			switch cursor {
			case "0":
				// Two videos from the same author on the first page.
				fmt.Fprintf(w, `{"statusCode":0,"itemList":[%s,%s],"hasMore":true,"cursor":"30"}`,
					authorItem("v1", "u1", "alpha", 1000, 500),
					authorItem("v2", "u1", "alpha", 1000, 500))
			default:
				fmt.Fprintf(w, `{"statusCode":0,"itemList":[%s],"hasMore":false,"cursor":""}`,
					authorItem("v3", "u2", "beta", 2000, 900))
			}
		}))
		defer server.Close()

		client := newTestClient(server, 2)

		out, err := client.FetchTrending(context.Background(), 3)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(2))
		Expect(out[0].ID).To(Equal("u1"))
		Expect(out[0].Username).To(Equal("alpha"))
		Expect(out[0].FollowerCount).To(Equal(int64(1000)))
		Expect(out[0].TotalLikes).To(Equal(int64(500)))
		Expect(out[0].ProfileURL).To(Equal("https://www.tiktok.com/@alpha"))
		Expect(out[1].ID).To(Equal("u2"))
		Expect(sawToken.Load()).To(BeTrue())
	})

	It("stops at the requested count", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"statusCode":0,"itemList":[%s,%s],"hasMore":true,"cursor":"30"}`,
				authorItem("v1", "u1", "alpha", 1000, 500),
				authorItem("v2", "u2", "beta", 2000, 900))
		}))
		defer server.Close()

		client := newTestClient(server, 2)

		out, err := client.FetchTrending(context.Background(), 1)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(1))
		Expect(out[0].ID).To(Equal("u1"))
	})

	It("retries a failing page and succeeds on a later attempt", func() {
		var requests atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requests.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"statusCode":10000,"statusMsg":"server busy"}`)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"statusCode":0,"itemList":[%s],"hasMore":false,"cursor":""}`,
				authorItem("v1", "u1", "alpha", 1000, 500))
		}))
		defer server.Close()

		client := newTestClient(server, 2)

		out, err := client.FetchTrending(context.Background(), 1)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(1))
		Expect(requests.Load()).To(Equal(int32(2)))
	})

	It("returns a FetchError once a page exhausts its retries", func() {
		var requests atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"statusCode":10000,"statusMsg":"server busy"}`)
		}))
		defer server.Close()

		client := newTestClient(server, 2)

		out, err := client.FetchTrending(context.Background(), 1)

		Expect(out).To(BeNil())
		var fetchErr *tiktok.FetchError
		Expect(errors.As(err, &fetchErr)).To(BeTrue())
		Expect(fetchErr.Page).To(Equal(1))
		Expect(requests.Load()).To(Equal(int32(2)))
	})

	It("treats an application-level error body as a failure", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"statusCode":10201,"statusMsg":"invalid token","itemList":[],"hasMore":false}`)
		}))
		defer server.Close()

		client := newTestClient(server, 2)

		_, err := client.FetchTrending(context.Background(), 1)

		var fetchErr *tiktok.FetchError
		Expect(errors.As(err, &fetchErr)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("invalid token"))
	})

	It("stops when a page yields no new authors", func() {
		var requests atomic.Int32

		// The feed keeps advertising more pages but only ever serves the
		// same author again.
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"statusCode":0,"itemList":[%s],"hasMore":true,"cursor":"30"}`,
				authorItem("v1", "u1", "alpha", 1000, 500))
		}))
		defer server.Close()

		client := newTestClient(server, 2)

		out, err := client.FetchTrending(context.Background(), 3)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(1))
		Expect(out[0].ID).To(Equal("u1"))
		Expect(requests.Load()).To(Equal(int32(2)))
	})

	It("skips items without any author id", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"statusCode":0,"itemList":[{"id":"v0","author":{},"authorStats":{}},%s],"hasMore":false,"cursor":""}`,
				authorItem("v1", "u1", "alpha", 1000, 500))
		}))
		defer server.Close()

		client := newTestClient(server, 2)

		out, err := client.FetchTrending(context.Background(), 5)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(1))
		Expect(out[0].ID).To(Equal("u1"))
	})
})

var _ = Describe("Config", func() {
	It("rejects an out-of-range batch size", func() {
		config := &tiktok.Config{
			BaseURL:   tiktok.DefaultBaseURL,
			BatchSize: 0,
			Logger:    testLogger(),
		}
		Expect(config.Validate()).To(HaveOccurred())
	})

	It("requires a logger", func() {
		config := &tiktok.Config{BatchSize: 10}
		Expect(config.Validate()).To(HaveOccurred())
	})
})
