package walletsynchronizer

// invalidateTransactions handles a detected fork: the
// store rewinds every tracked subwallet's inputs and drops confirmed
// transactions at or above forkHeight, and both statuses are rewound
// to match so the next GetBlocks request asks the node to resume from
// before the fork. This
// is a normal event, not an error.
func (s *Synchronizer) invalidateTransactions(forkHeight uint64) {
	s.store.RemoveForkedTransactions(forkHeight)

	s.statusMu.Lock()
	s.scannerStatus.RewindTo(forkHeight)
	s.downloaderStatus.RewindTo(forkHeight)
	s.statusMu.Unlock()
}
