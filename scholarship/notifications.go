package scholarship

import (
	"encoding/json"
	"fmt"
	"os"

	natsutil "github.com/kthomas/go-natsutil"
	uuid "github.com/kthomas/go.uuid"

	"github.com/edudao/scholarship/common"
)

const eventScholarshipCreated = "created"
const eventScholarshipVoted = "voted"
const eventScholarshipApplied = "applied"
const eventScholarshipApproved = "approved"
const eventScholarshipFunded = "funded"

// dispatchNotification broadcasts a lifecycle event for the given scholarship
// to qualified subscribers
func dispatchNotification(event string, scholarshipID uuid.UUID) {
	if os.Getenv("NATS_URL") == "" {
		return
	}

	subject := fmt.Sprintf("scholarship.notification.%s", event)
	payload, _ := json.Marshal(map[string]interface{}{
		"scholarship_id": scholarshipID.String(),
	})

	if _, err := natsutil.NatsJetstreamPublish(subject, payload); err != nil {
		common.Log.Warningf("failed to dispatch %s notification for scholarship %s; %s", event, scholarshipID, err.Error())
	}
}

// dispatchFundingSettlement queues idempotent settlement bookkeeping for a
// payment that confirmed on-chain
func dispatchFundingSettlement(transactionID uuid.UUID, transactionHash string) {
	if os.Getenv("NATS_URL") == "" {
		common.Log.Warningf("no NATS configured; funding settlement for transaction %s must be reconciled manually", transactionID)
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"transaction_id":   transactionID.String(),
		"transaction_hash": transactionHash,
	})

	if _, err := natsutil.NatsJetstreamPublish(natsFundingSettlementSubject, payload); err != nil {
		common.Log.Warningf("failed to queue funding settlement for transaction %s; %s", transactionID, err.Error())
	}
}
