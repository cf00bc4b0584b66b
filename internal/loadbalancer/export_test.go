package loadbalancer

// Refresh pushes the current healthy subset into the strategy.
func (lb *LoadBalancer) Refresh() {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	lb.strategy.UpdateServers(lb.pool.ListHealthy())
}

// Reset resets the strategy's selection state.
func (lb *LoadBalancer) Reset() {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	lb.strategy.Reset()
}
