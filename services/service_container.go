package services

// NewServiceContainer wires the services around one shared daemon handle.
func NewServiceContainer(signal Signal) *ServiceContainer {
	return &ServiceContainer{
		Messaging: NewMessagingService(signal),
	}
}
