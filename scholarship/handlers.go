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
	"sync"

	"github.com/gin-gonic/gin"
	dbconf "github.com/kthomas/go-db-config"
	uuid "github.com/kthomas/go.uuid"
	provide "github.com/provideplatform/provide-go/common"

	"github.com/edudao/scholarship/common"
	"github.com/edudao/scholarship/identity"
	"github.com/edudao/scholarship/session"
	"github.com/edudao/scholarship/wallet"
)

// collaborators are resolved lazily and shared across the concurrent handler
// goroutines; the mutexes make the first resolution a happens-before edge
var collaboratorsMutex sync.Mutex
var paymentProvider wallet.Provider
var identityVerifier identity.Verifier

// SetPaymentProvider overrides the wallet provider used by the funding
// operation
func SetPaymentProvider(provider wallet.Provider) {
	collaboratorsMutex.Lock()
	defer collaboratorsMutex.Unlock()
	paymentProvider = provider
}

// SetIdentityVerifier overrides the identity collaborator consulted for
// student applications
func SetIdentityVerifier(verifier identity.Verifier) {
	collaboratorsMutex.Lock()
	defer collaboratorsMutex.Unlock()
	identityVerifier = verifier
}

func resolvePaymentProvider() (wallet.Provider, error) {
	collaboratorsMutex.Lock()
	defer collaboratorsMutex.Unlock()
	if paymentProvider == nil {
		provider, err := wallet.NewEVMProvider()
		if err != nil {
			return nil, err
		}
		paymentProvider = provider
	}
	return paymentProvider, nil
}

func resolveIdentityVerifier() identity.Verifier {
	collaboratorsMutex.Lock()
	defer collaboratorsMutex.Unlock()
	if identityVerifier == nil {
		identityVerifier = identity.DefaultVerifier()
	}
	return identityVerifier
}

// InstallAPI registers the scholarship workflow API handlers with gin
func InstallAPI(r *gin.Engine) {
	r.GET("/api/v1/scholarships", listScholarshipsHandler)
	r.POST("/api/v1/scholarships", createScholarshipHandler)
	r.GET("/api/v1/scholarships/:id", scholarshipDetailsHandler)

	r.POST("/api/v1/scholarships/:id/votes", castVoteHandler)
	r.POST("/api/v1/scholarships/:id/applications", applyForScholarshipHandler)
	r.POST("/api/v1/scholarships/:id/approve", approveScholarshipHandler)
	r.POST("/api/v1/scholarships/:id/fund", fundScholarshipHandler)

	r.GET("/api/v1/applications", listApplicationsHandler)
	r.GET("/api/v1/transactions", listTransactionsHandler)
	r.GET("/api/v1/stats", statsHandler)
	r.GET("/api/v1/session", sessionDetailsHandler)
}

// renderWorkflowError translates a coded workflow failure into the HTTP
// response, rendering the benign already-done outcome as a success carrying
// the preexisting record
func renderWorkflowError(err error, record interface{}, c *gin.Context) {
	coded, codedOk := err.(*common.Error)
	if !codedOk {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	if coded.Code == common.ErrCodeAlreadyDone {
		provide.Render(map[string]interface{}{
			"message": coded.Message,
			"record":  record,
		}, 200, c)
		return
	}

	provide.RenderError(coded.Message, coded.Status(), c)
}

// list/query the composed scholarship read-model
func listScholarshipsHandler(c *gin.Context) {
	db := dbconf.DatabaseConnection()

	views, err := ListViews(db)
	if err != nil {
		renderWorkflowError(err, nil, c)
		return
	}

	if c.Query("active") == "true" {
		active := make([]*View, 0)
		for _, view := range views {
			if view.Active() {
				active = append(active, view)
			}
		}
		views = active
	}

	provide.Render(views, 200, c)
}

func scholarshipDetailsHandler(c *gin.Context) {
	scholarshipID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	db := dbconf.DatabaseConnection()
	view := FindView(db, scholarshipID)
	if view == nil {
		provide.RenderError("scholarship not found", 404, c)
		return
	}

	provide.Render(view, 200, c)
}

func createScholarshipHandler(c *gin.Context) {
	sess := session.Resolve(c)

	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return
	}

	params := &CreateScholarshipParams{}
	err = json.Unmarshal(buf, params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	s, err := CreateScholarship(db, sess, params)
	if err != nil {
		renderWorkflowError(err, nil, c)
		return
	}

	provide.Render(s, 201, c)
}

func castVoteHandler(c *gin.Context) {
	sess := session.Resolve(c)

	scholarshipID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return
	}

	params := map[string]interface{}{}
	err = json.Unmarshal(buf, &params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	voteType, voteTypeOk := params["vote_for"].(bool)
	if !voteTypeOk {
		provide.RenderError("vote_for is required", 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	v, err := CastVote(db, sess, scholarshipID, voteType)
	if err != nil {
		renderWorkflowError(err, v, c)
		return
	}

	provide.Render(v, 201, c)
}

func applyForScholarshipHandler(c *gin.Context) {
	sess := session.Resolve(c)

	scholarshipID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	enrichSessionVerification(c, sess)

	db := dbconf.DatabaseConnection()
	a, err := ApplyForScholarship(db, sess, scholarshipID)
	if err != nil {
		renderWorkflowError(err, a, c)
		return
	}

	provide.Render(a, 201, c)
}

func approveScholarshipHandler(c *gin.Context) {
	sess := session.Resolve(c)

	scholarshipID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return
	}

	params := map[string]interface{}{}
	err = json.Unmarshal(buf, &params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	recipientAddress, recipientOk := params["recipient_address"].(string)
	if !recipientOk || recipientAddress == "" {
		provide.RenderError("recipient_address is required", 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	a, err := ApproveScholarship(db, sess, scholarshipID, recipientAddress)
	if err != nil {
		renderWorkflowError(err, nil, c)
		return
	}

	provide.Render(a, 200, c)
}

func fundScholarshipHandler(c *gin.Context) {
	sess := session.Resolve(c)

	scholarshipID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return
	}

	params := map[string]interface{}{}
	err = json.Unmarshal(buf, &params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	rawApplicationID, applicationIDOk := params["application_id"].(string)
	if !applicationIDOk {
		provide.RenderError("application_id is required", 422, c)
		return
	}
	applicationID, err := uuid.FromString(rawApplicationID)
	if err != nil {
		provide.RenderError("application_id is malformed", 422, c)
		return
	}

	provider, err := resolvePaymentProvider()
	if err != nil {
		renderWorkflowError(err, nil, c)
		return
	}

	db := dbconf.DatabaseConnection()
	t, err := FundScholarship(c.Request.Context(), db, sess, provider, scholarshipID, applicationID)
	if err != nil {
		renderWorkflowError(err, nil, c)
		return
	}

	provide.Render(t, 201, c)
}

func listApplicationsHandler(c *gin.Context) {
	db := dbconf.DatabaseConnection()

	var applicant *string
	if c.Query("applicant") != "" {
		applicant = common.StringOrNil(c.Query("applicant"))
	}

	provide.Render(ListApplications(db, applicant), 200, c)
}

func listTransactionsHandler(c *gin.Context) {
	db := dbconf.DatabaseConnection()
	provide.Render(ListTransactions(db), 200, c)
}

func statsHandler(c *gin.Context) {
	db := dbconf.DatabaseConnection()

	views, err := ListViews(db)
	if err != nil {
		renderWorkflowError(err, nil, c)
		return
	}

	provide.Render(ComputeStats(views), 200, c)
}

// session details, including the resolved role and identity verification
// status for the connected address
func sessionDetailsHandler(c *gin.Context) {
	sess := session.Resolve(c)
	enrichSessionVerification(c, sess)
	provide.Render(sess, 200, c)
}

func enrichSessionVerification(c *gin.Context, sess *session.Session) {
	if !sess.Connected() {
		return
	}

	status, err := resolveIdentityVerifier().Status(c.Request.Context(), sess.Address)
	if err != nil {
		common.Log.Warningf("failed to resolve identity verification status for %s; %s", sess.Address, err.Error())
		return
	}
	sess.Verified = status.Verified
}
