package app

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/ibd1279/vks"
	"vkpresent/src/render"
)

// Config carries everything the presentation engine needs at startup.
type Config struct {
	Width  int
	Height int
	Title  string

	InstanceLayers     []string
	InstanceExtensions []string
	DeviceExtensions   []string

	FramesInFlight int

	VertShaderPath string
	FragShaderPath string

	Diag Sink
}

// App owns the native object graph from window to scheduler. Create with
// New, drive with Run, release with Close. All of it must stay on the main
// OS thread.
type App struct {
	cfg  Config
	diag Sink

	window   *Window
	instance vks.InstanceFacade
	surface  vks.SurfaceKHR

	physicalDevice vks.PhysicalDeviceFacade
	device         vks.DeviceFacade
	graphicsQueue  vks.QueueFacade
	presentQueue   vks.QueueFacade
	graphicsIndex  uint32
	presentIndex   uint32
	commandPool    vks.CommandPoolFacade

	backend   *chainBackend
	chain     *render.Chain
	frames    *frameBackend
	scheduler *render.Scheduler

	loaderReady bool
	poolReady   bool
}

// New builds the whole stack: window, instance, surface, negotiated device,
// queues, command pool, swapchain and pipeline, sync objects, scheduler. On
// any failure it releases whatever already exists and returns the error.
func New(cfg Config) (*App, error) {
	if cfg.FramesInFlight <= 0 {
		cfg.FramesInFlight = render.MaxFramesInFlight
	}
	a := &App{cfg: cfg, diag: cfg.Diag}
	if a.diag == nil {
		a.diag = defaultSink
	}
	if err := a.setup(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) setup() error {
	var err error
	if a.window, err = newWindow(a.cfg.Width, a.cfg.Height, a.cfg.Title); err != nil {
		return err
	}

	if result := vks.Init(); result.IsError() {
		return vkErr("loader init", result)
	}
	a.loaderReady = true

	if err = a.createInstance(); err != nil {
		return err
	}

	if a.surface, err = a.window.CreateSurface(a.instance.H); err != nil {
		return err
	}

	if err = a.selectPhysicalDevice(); err != nil {
		return err
	}
	if err = a.createDevice(); err != nil {
		return err
	}
	if err = a.createCommandPool(); err != nil {
		return err
	}

	a.backend = &chainBackend{
		device:      a.device,
		physical:    a.physicalDevice,
		surface:     a.surface,
		commandPool: a.commandPool,
		vertPath:    a.cfg.VertShaderPath,
		fragPath:    a.cfg.FragShaderPath,
	}
	a.chain = render.NewChain(a.backend, a.backend, a.window, a.graphicsIndex, a.presentIndex)
	if err = a.chain.Build(); err != nil {
		return err
	}

	if a.frames, err = newFrameBackend(a.device, a.graphicsQueue, a.presentQueue, a.backend, a.cfg.FramesInFlight); err != nil {
		return err
	}

	a.scheduler = render.NewScheduler(a.frames, a.chain, a.cfg.FramesInFlight, a.chain.ImageCount())
	a.window.OnResize(a.scheduler.NotifyResize)
	return nil
}

func (a *App) createInstance() error {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	layers, err := availableLayers(a.cfg.InstanceLayers, a.diag)
	if err != nil {
		return err
	}
	if err := reportInstanceOptions(layers, a.diag); err != nil {
		return err
	}

	extensions := append(
		append([]string{}, a.cfg.InstanceExtensions...),
		a.window.RequiredExtensions()...,
	)

	appInfo := vks.CPtr(arp, &vks.ApplicationInfo{},
		vks.SetEngine(arp, "NoEngine", vks.MakeApiVersion(0, 1, 0, 0)),
		vks.SetApplication(arp, a.cfg.Title, vks.MakeApiVersion(0, 0, 1, 0)),
		vks.SetDefaultSType,
		func(in *vks.ApplicationInfo) {
			in.SetApiVersion(uint32(vks.VK_API_VERSION_1_3))
		},
	)
	createInfo := vks.CPtr(arp, &vks.InstanceCreateInfo{},
		vks.SetInstanceLayers(arp, layers),
		vks.SetInstanceExtensions(arp, extensions),
		vks.SetDefaultSType,
		func(in *vks.InstanceCreateInfo) {
			in.SetPApplicationInfo(appInfo)
			in.SetFlags(vks.InstanceCreateFlags(vks.VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR))
		},
	)

	var vkInstance vks.Instance
	if result := vks.CreateInstance(createInfo, nil, &vkInstance); result.IsError() {
		return vkErr("vkCreateInstance", result)
	}
	a.instance = vks.MakeInstanceFacade(vkInstance)
	return nil
}

// selectPhysicalDevice snapshots every enumerated device, rates them, and
// resolves queue families on the winner.
func (a *App) selectPhysicalDevice() error {
	var count uint32
	if result := a.instance.EnumeratePhysicalDevices(&count, nil); result.IsError() {
		return vkErr("vkEnumeratePhysicalDevices", result)
	}
	physicalDevices := make([]vks.PhysicalDevice, count)
	if result := a.instance.EnumeratePhysicalDevices(&count, physicalDevices); result.IsError() {
		return vkErr("vkEnumeratePhysicalDevices", result)
	}

	infos := make([]render.DeviceInfo, len(physicalDevices))
	for k, phyDev := range physicalDevices {
		info, err := snapshotDevice(a.instance.MakePhysicalDeviceFacade(phyDev), a.surface)
		if err != nil {
			return err
		}
		infos[k] = info
	}
	reportDevices(infos, a.diag)

	best, err := render.SelectDevice(infos, a.cfg.DeviceExtensions)
	if err != nil {
		return err
	}
	a.physicalDevice = a.instance.MakePhysicalDeviceFacade(physicalDevices[best])

	indices := render.FindQueueFamilies(infos[best].QueueFamilies)
	a.graphicsIndex = indices.Graphics.Some()
	a.presentIndex = indices.Present.Some()
	a.diag("using device %d (%s), graphics family %d, present family %d",
		best, infos[best].Name, a.graphicsIndex, a.presentIndex)
	return nil
}

func (a *App) createDevice() error {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	familyIndices := []uint32{a.graphicsIndex, a.presentIndex}
	if familyIndices[0] == familyIndices[1] {
		familyIndices = familyIndices[:1]
	}
	queueCreateInfos := make([]vks.DeviceQueueCreateInfo, len(familyIndices))
	for k, idx := range familyIndices {
		queueCreateInfos[k] = vks.DeviceQueueCreateInfo{}.
			WithDefaultSType().
			WithQueueFamilyIndex(idx).
			WithPQueuePriorities([]float32{1.0})
	}
	queueCreateInfos = vks.DeviceQueueCreateInfoCSlice(arp, queueCreateInfos...)

	deviceCreateInfo := vks.CPtr(arp, &vks.DeviceCreateInfo{},
		vks.SetDefaultSType,
		vks.SetDeviceExtensions(arp, a.cfg.DeviceExtensions),
		func(in *vks.DeviceCreateInfo) {
			in.SetPQueueCreateInfos(queueCreateInfos)
		},
	)

	var vkDevice vks.Device
	if result := a.physicalDevice.CreateDevice(deviceCreateInfo, nil, &vkDevice); result.IsError() {
		return vkErr("vkCreateDevice", result)
	}
	a.device = a.physicalDevice.MakeDeviceFacade(vkDevice)

	// Only one queue gets created per family, so both handles come from
	// queue index zero even when the families differ.
	var queue vks.Queue
	a.device.GetDeviceQueue(a.graphicsIndex, 0, &queue)
	a.graphicsQueue = a.device.MakeQueueFacade(queue)
	a.device.GetDeviceQueue(a.presentIndex, 0, &queue)
	a.presentQueue = a.device.MakeQueueFacade(queue)
	return nil
}

func (a *App) createCommandPool() error {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	poolCreateInfo := vks.CPtr(arp, &vks.CommandPoolCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.CommandPoolCreateInfo) {
			in.SetQueueFamilyIndex(a.graphicsIndex)
		},
	)

	var commandPool vks.CommandPool
	if result := a.device.CreateCommandPool(poolCreateInfo, nil, &commandPool); result.IsError() {
		return vkErr("vkCreateCommandPool", result)
	}
	a.commandPool = a.device.MakeCommandPoolFacade(commandPool)
	a.poolReady = true
	return nil
}

// Run pumps window events and draws until the window asks to close, then
// drains the device so Close can tear down safely.
func (a *App) Run() error {
	for !a.window.ShouldClose() {
		glfw.PollEvents()
		if err := a.scheduler.DrawFrame(); err != nil {
			return fmt.Errorf("draw frame: %w", err)
		}
	}
	return vkErr("vkDeviceWaitIdle", a.device.DeviceWaitIdle())
}

// Close releases everything setup created, in reverse order, tolerating a
// partially built App. Safe to call after a failed New or an erroring Run.
func (a *App) Close() {
	if a.instance.H != vks.NullInstance {
		if a.device.H != vks.NullDevice {
			a.device.DeviceWaitIdle()

			if a.chain != nil {
				a.chain.Teardown()
			}
			if a.backend != nil {
				a.backend.destroy()
			}
			if a.frames != nil {
				a.frames.destroy()
			}
			if a.poolReady {
				a.device.DestroyCommandPool(a.commandPool.H, nil)
				a.poolReady = false
			}
			a.device.DestroyDevice(nil)
			a.device = vks.DeviceFacade{}
		}
		if a.surface != vks.NullSurfaceKHR {
			a.instance.DestroySurfaceKHR(a.surface, nil)
			a.surface = vks.NullSurfaceKHR
		}
		a.instance.DestroyInstance(nil)
		a.instance = vks.InstanceFacade{}
	}
	if a.loaderReady {
		vks.Destroy()
		a.loaderReady = false
	}
	if a.window != nil {
		a.window.Destroy()
		a.window = nil
	}
}
