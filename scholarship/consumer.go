/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package scholarship

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	dbconf "github.com/kthomas/go-db-config"
	natsutil "github.com/kthomas/go-natsutil"
	uuid "github.com/kthomas/go.uuid"
	"github.com/nats-io/nats.go"

	"github.com/edudao/scholarship/common"
)

const defaultNatsStream = "scholarship"

const natsFundingSettlementSubject = "scholarship.funding.settlement"
const natsFundingSettlementMaxInFlight = 32
const fundingSettlementAckWait = time.Minute * 5
const fundingSettlementMaxDeliveries = 10

func init() {
	if !common.ConsumeNATSStreamingSubscriptions {
		common.Log.Debug("scholarship package consumer configured to skip NATS streaming subscription setup")
		return
	}

	natsutil.EstablishSharedNatsConnection(nil)
	natsutil.NatsCreateStream(defaultNatsStream, []string{
		fmt.Sprintf("%s.>", defaultNatsStream),
	})

	var waitGroup sync.WaitGroup

	createNatsFundingSettlementSubscriptions(&waitGroup)
}

func createNatsFundingSettlementSubscriptions(wg *sync.WaitGroup) {
	for i := uint64(0); i < natsutil.GetNatsConsumerConcurrency(); i++ {
		natsutil.RequireNatsJetstreamSubscription(wg,
			fundingSettlementAckWait,
			natsFundingSettlementSubject,
			natsFundingSettlementSubject,
			natsFundingSettlementSubject,
			consumeFundingSettlementMsg,
			fundingSettlementAckWait,
			natsFundingSettlementMaxInFlight,
			fundingSettlementMaxDeliveries,
			nil,
		)
	}
}

// consumeFundingSettlementMsg finalizes the bookkeeping for a payment that
// confirmed on-chain but whose receipt/status writes did not land; settlement
// is idempotent so redelivery is harmless
func consumeFundingSettlementMsg(msg *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			common.Log.Warningf("recovered during funding settlement; %s", r)
			msg.Nak()
		}
	}()

	common.Log.Debugf("consuming %d-byte NATS funding settlement message on subject: %s", len(msg.Data), msg.Subject)

	params := map[string]interface{}{}
	err := json.Unmarshal(msg.Data, &params)
	if err != nil {
		common.Log.Warningf("failed to unmarshal funding settlement message; %s", err.Error())
		msg.Nak()
		return
	}

	transactionID, transactionIDOk := params["transaction_id"].(string)
	transactionHash, transactionHashOk := params["transaction_hash"].(string)
	if !transactionIDOk || !transactionHashOk {
		common.Log.Warning("failed to parse transaction_id or transaction_hash during funding settlement message handler")
		msg.Nak()
		return
	}

	db := dbconf.DatabaseConnection()

	t := FindTransaction(db, uuid.FromStringOrNil(transactionID))
	if t == nil {
		common.Log.Warningf("failed to resolve transaction during funding settlement; transaction id: %s", transactionID)
		msg.Nak()
		return
	}

	if err := settleFunding(db, t, transactionHash); err != nil {
		common.Log.Warningf("funding settlement failed for transaction %s; %s", transactionID, err.Error())
		msg.Nak()
		return
	}

	common.Log.Debugf("settled funding for transaction: %s", transactionID)
	InvalidateViewsCache()
	dispatchNotification(eventScholarshipFunded, t.ScholarshipID)
	msg.Ack()
}
