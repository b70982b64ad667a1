package llm

import (
	"capacityreport/internal/config"
	"capacityreport/internal/httpx"
	"capacityreport/internal/report"
)

type Config = config.Config
type Summary = report.Summary

var externalHTTPClient = httpx.ExternalHTTPClient()
