package limiter

// tracked returns the number of IPs holding a bucket.
func (i *IPRateLimiter) tracked() int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return len(i.limits)
}
