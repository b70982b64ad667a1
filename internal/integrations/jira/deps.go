package jira

import (
	"capacityreport/internal/config"
	"capacityreport/internal/domain"
	"capacityreport/internal/httpx"
)

type Config = config.Config
type WorkItem = domain.WorkItem
type IssueQuery = domain.IssueQuery

var externalHTTPClient = httpx.ExternalHTTPClient()
