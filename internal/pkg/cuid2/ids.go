package cuid2

// Domain ID helpers. Each entity carries a short prefix so an ID in a
// log line or support ticket identifies its table at a glance.

// GenerateImportJobID returns a new import job ID, e.g. "imp_0CL2Kw...".
func GenerateImportJobID() string {
	return GeneratePrefixedId("imp", PrefixedIdOptions{})
}

// GenerateProductID returns a new supplier product ID, e.g. "sup_0CL2Kw...".
func GenerateProductID() string {
	return GeneratePrefixedId("sup", PrefixedIdOptions{})
}

// GenerateLinkID returns a new product link ID, e.g. "lnk_0CL2Kw...".
func GenerateLinkID() string {
	return GeneratePrefixedId("lnk", PrefixedIdOptions{})
}

// GenerateQueueEntryID returns a new enrichment queue entry ID, e.g. "enq_0CL2Kw...".
func GenerateQueueEntryID() string {
	return GeneratePrefixedId("enq", PrefixedIdOptions{})
}

// GenerateDeadLetterID returns a new dead letter entry ID, e.g. "dlq_0CL2Kw...".
func GenerateDeadLetterID() string {
	return GeneratePrefixedId("dlq", PrefixedIdOptions{})
}
