package vulkan

import "sync"

// LockGroup names a set of Vulkan objects that need external
// synchronization together.
type LockGroup string

const (
	CommandPoolManagement LockGroup = "command_pool_management"
	DescriptorManagement  LockGroup = "descriptor_management"
	PipelineManagement    LockGroup = "pipeline_management"
)

// VulkanLockPool hands out one mutex per lock group and per queue family.
type VulkanLockPool struct {
	mu           sync.Mutex // Protects access to the maps
	locks        map[LockGroup]*sync.Mutex
	queueMutexes map[uint32]*sync.Mutex // Queue family index as key
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks:        make(map[LockGroup]*sync.Mutex),
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

func (vs *VulkanLockPool) lock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	l, ok := vs.locks[group]
	if !ok {
		l = &sync.Mutex{}
		vs.locks[group] = l
	}
	return l
}

func (vs *VulkanLockPool) queueLock(family uint32) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	l, ok := vs.queueMutexes[family]
	if !ok {
		l = &sync.Mutex{}
		vs.queueMutexes[family] = l
	}
	return l
}

// SafeCall runs fn while holding the lock of group.
func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.lock(group)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// SafeQueueCall runs fn while holding the lock of a queue family. Queues
// shared by graphics and present map to the same lock.
func (vs *VulkanLockPool) SafeQueueCall(family uint32, fn func() error) error {
	l := vs.queueLock(family)
	l.Lock()
	defer l.Unlock()
	return fn()
}
