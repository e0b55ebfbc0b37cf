package events

// DomainEventTranslator normalizes publish options before they reach a bus
// implementation, so every publisher applies keys and headers the same way.
type DomainEventTranslator struct{}

// NewDomainEventTranslator returns a ready-to-use translator.
func NewDomainEventTranslator() *DomainEventTranslator {
	return new(DomainEventTranslator)
}

// ConvertDomainOptions collapses the caller's options into PublishParams and
// re-emits only the options that carry a value, dropping empty keys and
// header maps so bus implementations never see zero-value settings.
func (t *DomainEventTranslator) ConvertDomainOptions(domainOpts []PublishOption) []PublishOption {
	dp := PublishParams{}
	for _, dOpt := range domainOpts {
		dOpt(&dp)
	}

	var eventOpts []PublishOption
	if dp.Key != "" {
		eventOpts = append(eventOpts, WithKey(dp.Key))
	}
	if len(dp.Headers) > 0 {
		eventOpts = append(eventOpts, WithHeaders(dp.Headers))
	}

	return eventOpts
}
