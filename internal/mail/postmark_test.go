package mail

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Postmark", func() {
	var (
		ghServer *ghttp.Server
		mailer   *Postmark
		msg      Message
	)

	BeforeEach(func() {
		ghServer = ghttp.NewServer()
		var err error
		mailer, err = NewPostmark("test-token", ghServer.URL(), 0)
		Expect(err).NotTo(HaveOccurred())

		msg = Message{
			From:     "alerts@ledgr.app",
			To:       "user@example.com",
			Subject:  "Budget Alert - Spending Limit Exceeded",
			HtmlBody: "<p>over budget</p>",
			TextBody: "over budget",
		}
	})

	AfterEach(func() {
		ghServer.Close()
	})

	It("should require a server token", func() {
		_, err := NewPostmark("", "", 0)
		Expect(err).To(HaveOccurred())
	})

	When("the API accepts the message", func() {
		BeforeEach(func() {
			ghServer.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/email"),
				ghttp.VerifyHeaderKV("X-Postmark-Server-Token", "test-token"),
				ghttp.VerifyJSONRepresenting(map[string]any{
					"From":          "alerts@ledgr.app",
					"To":            "user@example.com",
					"Subject":       "Budget Alert - Spending Limit Exceeded",
					"HtmlBody":      "<p>over budget</p>",
					"TextBody":      "over budget",
					"MessageStream": "outbound",
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"MessageID": "pm-123",
					"ErrorCode": 0,
					"Message":   "OK",
				}),
			))
		})

		It("should return the provider message ID", func() {
			id, err := mailer.Send(context.Background(), msg)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("pm-123"))
		})
	})

	When("the API rejects the message", func() {
		BeforeEach(func() {
			ghServer.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusUnprocessableEntity, map[string]any{
				"ErrorCode": 300,
				"Message":   "Invalid 'From' address.",
			}))
		})

		It("should surface the API error", func() {
			_, err := mailer.Send(context.Background(), msg)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("Invalid 'From' address."))
		})
	})

	When("the API answers 200 with a Postmark error code", func() {
		BeforeEach(func() {
			ghServer.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"ErrorCode": 406,
				"Message":   "Inactive recipient",
			}))
		})

		It("should treat it as a failure", func() {
			_, err := mailer.Send(context.Background(), msg)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("Inactive recipient"))
		})
	})

	When("the server is unreachable", func() {
		BeforeEach(func() {
			ghServer.Close()
		})

		It("should return a transport error", func() {
			_, err := mailer.Send(context.Background(), msg)
			Expect(err).To(HaveOccurred())
		})
	})
})
